package speech

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

// ErrorKind classifies why a capture session produced no transcript.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindNoSpeech            ErrorKind = "no_speech"
	KindAudioCaptureFailure ErrorKind = "audio_capture"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindAborted             ErrorKind = "aborted"
	KindBusy                ErrorKind = "busy"
	KindOther               ErrorKind = "other"
)

// Recognizers report failures with these sentinels; anything else maps to KindOther.
var (
	ErrPermissionDenied = errors.New("speech: microphone permission denied")
	ErrNoSpeech         = errors.New("speech: no speech detected")
	ErrAudioCapture     = errors.New("speech: audio capture failed")
)

type EventType int

const (
	// EventResult carries a transcript; interim results have Final=false.
	EventResult EventType = iota
	// EventError carries Err.
	EventError
	// EventEnd means the recognizer stopped listening.
	EventEnd
)

type RecognitionEvent struct {
	Type       EventType
	Transcript string
	Confidence float64
	Final      bool
	Err        error
}

// Recognizer is the platform speech recognition contract. Start blocks until
// recognition ends or ctx is cancelled, reporting progress through emit. emit
// may be called more than once with terminal events; only the first counts.
type Recognizer interface {
	RequestPermission(ctx context.Context) error
	Start(ctx context.Context, locale string, emit func(RecognitionEvent)) error
}

// CaptureResult is the single outcome of one listen.
type CaptureResult struct {
	Transcript string
	Confidence float64
	ErrorKind  ErrorKind
}

func (r CaptureResult) OK() bool {
	return r.ErrorKind == KindNone
}

// Err converts a failed result into an errx.AppError of kind capture.
func (r CaptureResult) Err() error {
	if r.OK() {
		return nil
	}
	return errx.NewKind(errx.KindCapture, errors.New(string(r.ErrorKind)), captureStatus(r.ErrorKind), "speech capture failed")
}

func captureStatus(k ErrorKind) int {
	switch k {
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindBusy:
		return http.StatusConflict
	case KindNoSpeech, KindAborted:
		return http.StatusNoContent
	default:
		return http.StatusBadGateway
	}
}

// KindOf maps recognizer errors onto capture error kinds.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNoSpeech), errors.Is(err, context.DeadlineExceeded):
		return KindNoSpeech
	case errors.Is(err, ErrAudioCapture):
		return KindAudioCaptureFailure
	case errors.Is(err, context.Canceled):
		return KindAborted
	default:
		return KindOther
	}
}

// Capturer turns a Recognizer into a single-shot listen with exactly one
// resolution per call. At most one session is live at a time.
type Capturer struct {
	rec    Recognizer
	active atomic.Bool

	mu      sync.Mutex
	session *session
}

type session struct {
	once   sync.Once
	result chan CaptureResult
	cancel context.CancelFunc
}

func (s *session) resolve(r CaptureResult) {
	s.once.Do(func() {
		s.result <- r
		s.cancel()
	})
}

func NewCapturer(rec Recognizer) *Capturer {
	return &Capturer{rec: rec}
}

// Listen requests permission, starts recognition in locale and blocks until the
// session resolves. The recognizer's context is cancelled on resolution so the
// microphone is released.
func (c *Capturer) Listen(ctx context.Context, locale string) CaptureResult {
	if !c.active.CompareAndSwap(false, true) {
		return CaptureResult{ErrorKind: KindBusy}
	}
	defer c.active.Store(false)

	log := logx.Component("speech")

	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{result: make(chan CaptureResult, 1), cancel: cancel}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	if err := c.rec.RequestPermission(sessCtx); err != nil {
		kind := KindOf(err)
		if kind == KindOther {
			kind = KindPermissionDenied
		}
		log.Warn().Err(err).Str("kind", string(kind)).Msg("microphone permission not granted")
		s.resolve(CaptureResult{ErrorKind: kind})
		return <-s.result
	}

	var (
		interimMu sync.Mutex
		interim   CaptureResult
	)
	emit := func(ev RecognitionEvent) {
		switch ev.Type {
		case EventResult:
			if ev.Final {
				s.resolve(CaptureResult{Transcript: ev.Transcript, Confidence: ev.Confidence})
				return
			}
			interimMu.Lock()
			interim = CaptureResult{Transcript: ev.Transcript, Confidence: ev.Confidence}
			interimMu.Unlock()
		case EventError:
			s.resolve(CaptureResult{ErrorKind: KindOf(ev.Err)})
		case EventEnd:
			interimMu.Lock()
			last := interim
			interimMu.Unlock()
			if last.Transcript != "" {
				s.resolve(last)
				return
			}
			s.resolve(CaptureResult{ErrorKind: KindNoSpeech})
		}
	}

	go func() {
		err := c.rec.Start(sessCtx, locale, emit)
		if err != nil {
			s.resolve(CaptureResult{ErrorKind: KindOf(err)})
			return
		}
		emit(RecognitionEvent{Type: EventEnd})
	}()

	select {
	case r := <-s.result:
		return r
	case <-sessCtx.Done():
		kind := KindOf(ctx.Err())
		if kind == KindNone {
			kind = KindAborted
		}
		s.resolve(CaptureResult{ErrorKind: kind})
		return <-s.result
	}
}

// Cancel resolves the live session, if any, as Aborted.
func (c *Capturer) Cancel() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.resolve(CaptureResult{ErrorKind: KindAborted})
	}
}

// Active reports whether a session is live.
func (c *Capturer) Active() bool {
	return c.active.Load()
}
