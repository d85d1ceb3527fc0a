package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CaptureSampleRate is the rate microphones record at and transcription expects.
const CaptureSampleRate = 16000

// Microphone records raw PCM16 mono audio.
type Microphone interface {
	Record(ctx context.Context, maxDuration time.Duration) ([]byte, error)
}

// ExecMicrophone records through arecord (ALSA) or ffmpeg.
type ExecMicrophone struct {
	Command    string
	SampleRate int
}

func NewExecMicrophone(command string) *ExecMicrophone {
	if command == "" {
		command = "arecord"
	}
	return &ExecMicrophone{Command: command, SampleRate: CaptureSampleRate}
}

// Available reports whether the capture binary can be run at all.
func (m *ExecMicrophone) Available() error {
	if _, err := exec.LookPath(m.Command); err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrAudioCapture, m.Command, err)
	}
	return nil
}

func (m *ExecMicrophone) args(maxDuration time.Duration) []string {
	secs := int(math.Ceil(maxDuration.Seconds()))
	if secs <= 0 {
		secs = 8
	}
	rate := strconv.Itoa(m.SampleRate)

	if strings.HasSuffix(m.Command, "ffmpeg") {
		format, device := "alsa", "default"
		if runtime.GOOS == "darwin" {
			format, device = "avfoundation", ":0"
		}
		return []string{
			"-hide_banner", "-loglevel", "error", "-nostdin",
			"-f", format, "-i", device,
			"-t", strconv.Itoa(secs),
			"-ac", "1", "-ar", rate,
			"-f", "s16le", "-",
		}
	}
	return []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "raw", "-d", strconv.Itoa(secs)}
}

func (m *ExecMicrophone) Record(ctx context.Context, maxDuration time.Duration) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Command, m.args(maxDuration)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(msg), "permission denied") {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrAudioCapture, err, msg)
	}
	pcm := stdout.Bytes()
	return pcm[:len(pcm)-len(pcm)%2], nil
}

// RMS returns the root mean square amplitude of little-endian PCM16 samples.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
