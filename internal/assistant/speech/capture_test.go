package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRecognizer emits a fixed sequence of events, then optionally blocks
// until cancelled.
type scriptedRecognizer struct {
	permErr  error
	events   []RecognitionEvent
	startErr error
	block    bool
	started  chan struct{}

	mu     sync.Mutex
	locale string
}

func (r *scriptedRecognizer) RequestPermission(context.Context) error { return r.permErr }

func (r *scriptedRecognizer) Start(ctx context.Context, locale string, emit func(RecognitionEvent)) error {
	r.mu.Lock()
	r.locale = locale
	r.mu.Unlock()
	if r.started != nil {
		close(r.started)
	}
	for _, ev := range r.events {
		emit(ev)
	}
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.startErr
}

func TestListen_FinalResult(t *testing.T) {
	rec := &scriptedRecognizer{events: []RecognitionEvent{
		{Type: EventResult, Transcript: "spent", Confidence: 0.4},
		{Type: EventResult, Transcript: "I spent $50 at the market", Confidence: 0.92, Final: true},
		{Type: EventResult, Transcript: "duplicate", Confidence: 1, Final: true},
		{Type: EventError, Err: ErrAudioCapture},
	}}
	c := NewCapturer(rec)

	r := c.Listen(context.Background(), "en-US")
	require.True(t, r.OK())
	assert.Equal(t, "I spent $50 at the market", r.Transcript)
	assert.InDelta(t, 0.92, r.Confidence, 1e-9)
	assert.Equal(t, "en-US", rec.locale)
	assert.NoError(t, r.Err())
	assert.False(t, c.Active())
}

func TestListen_InterimThenEnd(t *testing.T) {
	rec := &scriptedRecognizer{events: []RecognitionEvent{
		{Type: EventResult, Transcript: "budget for food", Confidence: 0.7},
		{Type: EventEnd},
	}}
	r := NewCapturer(rec).Listen(context.Background(), "en-US")
	require.True(t, r.OK())
	assert.Equal(t, "budget for food", r.Transcript)
}

func TestListen_ErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		rec  *scriptedRecognizer
		want ErrorKind
	}{
		{"permission", &scriptedRecognizer{permErr: errors.New("denied by user")}, KindPermissionDenied},
		{"permission sentinel", &scriptedRecognizer{permErr: ErrPermissionDenied}, KindPermissionDenied},
		{"end without speech", &scriptedRecognizer{events: []RecognitionEvent{{Type: EventEnd}}}, KindNoSpeech},
		{"clean return", &scriptedRecognizer{}, KindNoSpeech},
		{"no speech error", &scriptedRecognizer{startErr: ErrNoSpeech}, KindNoSpeech},
		{"capture failure", &scriptedRecognizer{events: []RecognitionEvent{{Type: EventError, Err: ErrAudioCapture}}}, KindAudioCaptureFailure},
		{"other", &scriptedRecognizer{startErr: errors.New("network")}, KindOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewCapturer(tc.rec).Listen(context.Background(), "en-US")
			assert.Equal(t, tc.want, r.ErrorKind)
			assert.Equal(t, errx.KindCapture, errx.KindOf(r.Err()))
		})
	}
}

func TestListen_CancelResolvesAborted(t *testing.T) {
	rec := &scriptedRecognizer{block: true, started: make(chan struct{})}
	c := NewCapturer(rec)

	done := make(chan CaptureResult, 1)
	go func() { done <- c.Listen(context.Background(), "en-US") }()

	<-rec.started
	c.Cancel()
	c.Cancel()

	select {
	case r := <-done:
		assert.Equal(t, KindAborted, r.ErrorKind)
	case <-time.After(time.Second):
		t.Fatal("listen did not resolve")
	}
}

func TestListen_ParentTimeoutIsNoSpeech(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := NewCapturer(&scriptedRecognizer{block: true}).Listen(ctx, "en-US")
	assert.Equal(t, KindNoSpeech, r.ErrorKind)
}

func TestListen_SecondConcurrentCallIsBusy(t *testing.T) {
	rec := &scriptedRecognizer{block: true, started: make(chan struct{})}
	c := NewCapturer(rec)

	done := make(chan CaptureResult, 1)
	go func() { done <- c.Listen(context.Background(), "en-US") }()
	<-rec.started

	assert.True(t, c.Active())
	r := c.Listen(context.Background(), "en-US")
	assert.Equal(t, KindBusy, r.ErrorKind)

	c.Cancel()
	assert.Equal(t, KindAborted, (<-done).ErrorKind)
}

func TestCancelWithoutSessionIsNoop(t *testing.T) {
	NewCapturer(&scriptedRecognizer{}).Cancel()
}
