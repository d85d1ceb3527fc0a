package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
)

// Synthesized speech arrives as raw little-endian PCM16, 24 kHz mono.
const (
	DefaultSampleRate    = 24000
	DefaultBitsPerSample = 16
	DefaultChannels      = 1
)

var ErrDecode = errors.New("audio: invalid pcm16 payload")

// Buffer is decoded, playable PCM16 audio.
type Buffer struct {
	pcm        []byte
	sampleRate int
	channels   int
}

// DecodeBase64PCM16 turns a base64 payload into a playable buffer. Empty
// payloads, invalid base64 and odd byte counts fail with ErrDecode.
func DecodeBase64PCM16(payload string, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, decodeError(fmt.Errorf("%w: empty payload", ErrDecode))
	}
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if len(pcm) == 0 {
		return nil, decodeError(fmt.Errorf("%w: no samples", ErrDecode))
	}
	frame := channels * DefaultBitsPerSample / 8
	if len(pcm)%frame != 0 {
		return nil, decodeError(fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames", ErrDecode, len(pcm), frame))
	}
	return &Buffer{pcm: pcm, sampleRate: sampleRate, channels: channels}, nil
}

// NewBuffer wraps raw PCM16 bytes without copying.
func NewBuffer(pcm []byte, sampleRate, channels int) *Buffer {
	return &Buffer{pcm: pcm, sampleRate: sampleRate, channels: channels}
}

func decodeError(err error) error {
	return errx.NewKind(errx.KindDecode, err, http.StatusUnprocessableEntity, "audio payload could not be decoded")
}

func (b *Buffer) Bytes() []byte   { return b.pcm }
func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Channels() int   { return b.channels }

// Samples returns the interleaved int16 samples.
func (b *Buffer) Samples() []int16 {
	out := make([]int16, len(b.pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b.pcm[i*2:]))
	}
	return out
}

func (b *Buffer) Duration() time.Duration {
	return bytesToDuration(len(b.pcm), b.sampleRate, b.channels)
}

func (b *Buffer) WAV() []byte {
	return PCMToWAV(b.pcm, b.sampleRate, DefaultBitsPerSample, b.channels)
}

func bytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels * DefaultBitsPerSample / 8
}

func bytesToDuration(n, sampleRate, channels int) time.Duration {
	bps := bytesPerSecond(sampleRate, channels)
	if bps <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// PCMToWAV prepends a 44 byte RIFF header to raw PCM data.
func PCMToWAV(pcmData []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcmData)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcmData...)
}
