package controller

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/advisor"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/audio"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/repo"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/speech"
)

type fakeAdvisor struct {
	mu       sync.Mutex
	calls    int
	requests []advisor.Request
	resp     *advisor.Response
	err      error
	block    bool
	entered  chan struct{}
}

func (f *fakeAdvisor) Chat(ctx context.Context, req advisor.Request) (*advisor.Response, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	resp, err, block, entered := f.resp, f.err, f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, err
}

func (f *fakeAdvisor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	audio time.Duration
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _ string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	d, err := f.audio, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	n := audio.DefaultSampleRate * 2 * int(d/time.Millisecond) / 1000
	if n < 2 {
		n = 2
	}
	return base64.StdEncoding.EncodeToString(make([]byte, n-n%2)), nil
}

func (f *fakeSynth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeRecognizer returns one scripted result; onStart runs when recognition begins.
type fakeRecognizer struct {
	permErr    error
	transcript string
	confidence float64
	err        error
	block      bool
	onStart    func()
}

func (r *fakeRecognizer) RequestPermission(context.Context) error { return r.permErr }

func (r *fakeRecognizer) Start(ctx context.Context, _ string, emit func(speech.RecognitionEvent)) error {
	if r.onStart != nil {
		r.onStart()
	}
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.err != nil {
		return r.err
	}
	emit(speech.RecognitionEvent{Type: speech.EventResult, Transcript: r.transcript, Confidence: r.confidence, Final: true})
	return nil
}

type fixture struct {
	c        *Controller
	advisor  *fakeAdvisor
	synth    *fakeSynth
	rec      *fakeRecognizer
	convs    *repo.MemoryConversationRepository
	ledger   *repo.MemoryLedger
	player   *audio.Player
	sink     *audio.DiscardSink
	today    time.Time
}

func newFixture(t *testing.T, quota model.QuotaConfig, sound bool) *fixture {
	t.Helper()
	f := &fixture{
		advisor: &fakeAdvisor{resp: &advisor.Response{Text: "Sure."}},
		synth:   &fakeSynth{audio: 40 * time.Millisecond},
		rec:     &fakeRecognizer{},
		convs:   repo.NewMemoryConversationRepository(),
		ledger:  repo.NewMemoryLedger(repo.DefaultLedgerSeed()),
		sink:    &audio.DiscardSink{},
		today:   time.Date(2026, 3, 14, 18, 0, 0, 0, time.Local),
	}
	f.player = audio.NewPlayer(f.sink)
	f.c = New(Config{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Locale:         "en-US",
		TurnTimeout:    2 * time.Second,
		SpeechTimeout:  2 * time.Second,
		SoundEnabled:   sound,
	}, Deps{
		Advisor:       f.advisor,
		Synthesizer:   f.synth,
		Conversations: f.convs,
		Ledger:        f.ledger,
		Quota:         repo.NewMemoryQuotaCounter(quota),
		Capturer:      speech.NewCapturer(f.rec),
		Player:        f.player,
	})
	f.c.now = func() time.Time { return f.today }
	t.Cleanup(f.player.Stop)
	return f
}

func unlimited() model.QuotaConfig { return model.QuotaConfig{Premium: true} }

func collect(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
