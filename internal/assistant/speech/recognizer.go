package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/audio"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

// MicRecognizer records one utterance, rejects silence and transcribes the rest.
type MicRecognizer struct {
	mic         Microphone
	transcriber Transcriber
	maxDuration time.Duration
	silenceRMS  float64
	sampleRate  int
}

func NewMicRecognizer(mic Microphone, transcriber Transcriber, maxDuration time.Duration, silenceRMS float64) *MicRecognizer {
	return &MicRecognizer{
		mic:         mic,
		transcriber: transcriber,
		maxDuration: maxDuration,
		silenceRMS:  silenceRMS,
		sampleRate:  CaptureSampleRate,
	}
}

func (r *MicRecognizer) RequestPermission(context.Context) error {
	if a, ok := r.mic.(interface{ Available() error }); ok {
		return a.Available()
	}
	return nil
}

func (r *MicRecognizer) Start(ctx context.Context, locale string, emit func(RecognitionEvent)) error {
	pcm, err := r.mic.Record(ctx, r.maxDuration)
	if err != nil {
		return err
	}
	level := RMS(pcm)
	logx.Debug().Int("bytes", len(pcm)).Float64("rms", level).Msg("microphone recording finished")
	if len(pcm) == 0 || level < r.silenceRMS {
		return ErrNoSpeech
	}

	tr, err := r.transcriber.Transcribe(ctx, audio.PCMToWAV(pcm, r.sampleRate, audio.DefaultBitsPerSample, 1), locale)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	emit(RecognitionEvent{Type: EventResult, Transcript: tr.Text, Confidence: tr.Confidence, Final: true})
	return nil
}

// LineRecognizer treats a typed line as a perfectly confident transcript.
type LineRecognizer struct {
	prompt io.Writer
	in     io.Reader

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	text string
	err  error
}

func NewLineRecognizer(in io.Reader, prompt io.Writer) *LineRecognizer {
	return &LineRecognizer{in: in, prompt: prompt}
}

func (r *LineRecognizer) RequestPermission(context.Context) error { return nil }

func (r *LineRecognizer) read() {
	sc := bufio.NewScanner(r.in)
	for sc.Scan() {
		r.lines <- lineResult{text: sc.Text()}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	r.lines <- lineResult{err: fmt.Errorf("%w: %v", ErrAudioCapture, err)}
	close(r.lines)
}

func (r *LineRecognizer) Start(ctx context.Context, _ string, emit func(RecognitionEvent)) error {
	r.once.Do(func() {
		r.lines = make(chan lineResult)
		go r.read()
	})
	if r.prompt != nil {
		fmt.Fprint(r.prompt, "(speak) > ")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case l, ok := <-r.lines:
		if !ok {
			return fmt.Errorf("%w: input closed", ErrAudioCapture)
		}
		if l.err != nil {
			return l.err
		}
		text := strings.TrimSpace(l.text)
		if text == "" {
			return ErrNoSpeech
		}
		emit(RecognitionEvent{Type: EventResult, Transcript: text, Confidence: 1, Final: true})
		return nil
	}
}
