package audio

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

// Sink opens output streams on a speaker.
type Sink interface {
	Open(sampleRate, channels int) (Stream, error)
}

// Stream is one playback's output channel. Close drains queued audio and
// waits for it to finish; Abort discards it immediately. Both may be called.
type Stream interface {
	Write(p []byte) error
	Close() error
	Abort() error
}

// FFPlaySink plays PCM16 through an ffplay process fed over stdin.
type FFPlaySink struct {
	Path     string
	Volume   int
	LogLevel string
}

func NewFFPlaySink(path string, volume int) *FFPlaySink {
	if path == "" {
		path = "ffplay"
	}
	if volume <= 0 {
		volume = 80
	}
	return &FFPlaySink{Path: path, Volume: volume, LogLevel: "error"}
}

func (s *FFPlaySink) Open(sampleRate, channels int) (Stream, error) {
	chLayout := "mono"
	if channels == 2 {
		chLayout = "stereo"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", s.LogLevel,
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-volume", fmt.Sprintf("%d", s.Volume),
		"-f", "s16le",
		"-ch_layout", chLayout,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.Path, args...)
	// SDL may pick a silent dummy backend on macOS.
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start %s: %w", s.Path, err)
	}
	logx.Debug().Int("pid", cmd.Process.Pid).Int("sample_rate", sampleRate).Msg("ffplay started")
	return &ffplayStream{cmd: cmd, stdin: stdin}, nil
}

type ffplayStream struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

func (s *ffplayStream) Write(p []byte) error {
	_, err := s.stdin.Write(p)
	return err
}

func (s *ffplayStream) wait() error {
	s.waitOnce.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

func (s *ffplayStream) Close() error {
	s.closeOnce.Do(func() { _ = s.stdin.Close() })
	return s.wait()
}

func (s *ffplayStream) Abort() error {
	s.closeOnce.Do(func() { _ = s.stdin.Close() })
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

// DiscardSink consumes audio without a speaker; playback is still paced.
type DiscardSink struct {
	written atomic.Int64
}

func (d *DiscardSink) Open(int, int) (Stream, error) {
	return discardStream{d}, nil
}

// Written reports the total bytes accepted across all streams.
func (d *DiscardSink) Written() int64 {
	return d.written.Load()
}

type discardStream struct{ d *DiscardSink }

func (s discardStream) Write(p []byte) error {
	s.d.written.Add(int64(len(p)))
	return nil
}

func (discardStream) Close() error { return nil }
func (discardStream) Abort() error { return nil }

// NewSink resolves AUDIO_SINK ("ffplay" or "none").
func NewSink(kind, ffplayPath string, volume int) Sink {
	switch kind {
	case "none", "discard", "":
		return &DiscardSink{}
	default:
		return NewFFPlaySink(ffplayPath, volume)
	}
}
