package controller

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/advisor"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/audio"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/interpreter"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/speech"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/tts"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

var (
	ErrEmptyInput       = errx.NewKind(errx.KindInvalidInput, nil, http.StatusBadRequest, "input is empty")
	ErrTurnInFlight     = errx.NewKind(errx.KindConflict, nil, http.StatusConflict, "a turn is already in progress")
	ErrAlreadyListening = errx.NewKind(errx.KindConflict, nil, http.StatusConflict, "already listening")
)

// LimitReachedMessage is appended when the free-tier quota is exhausted.
const LimitReachedMessage = "You've reached today's limit of free AI messages. Upgrade to Premium for unlimited access."

const persistTimeout = 5 * time.Second

type Config struct {
	ConversationID      string
	UserID              string
	Locale              string
	ConfidenceThreshold float64
	TurnTimeout         time.Duration
	SpeechTimeout       time.Duration
	ListenTimeout       time.Duration
	SampleRate          int
	SoundEnabled        bool
}

// Deps are the collaborators the controller drives. Capturer and Player are
// owned exclusively by the controller.
type Deps struct {
	Advisor       advisor.Advisor
	Synthesizer   tts.Synthesizer
	Conversations model.ConversationRepository
	Ledger        model.LedgerRepository
	Quota         model.QuotaCounter
	Capturer      *speech.Capturer
	Player        *audio.Player
}

type Preferences struct {
	SoundEnabled bool   `json:"sound_enabled"`
	Locale       string `json:"locale"`
}

// Controller owns one conversation: its message log, the turn phase and the
// single playback / capture resources.
type Controller struct {
	cfg  Config
	deps Deps
	now  func() time.Time
	log  zerolog.Logger

	mu          sync.Mutex
	phase       model.TurnPhase
	messages    []model.Message
	prefs       Preferences
	loaded      bool
	playback    *audio.Handle
	speakSeq    uint64
	speakCancel context.CancelFunc

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func New(cfg Config, deps Deps) *Controller {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = 20 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if deps.Player == nil {
		deps.Player = audio.NewPlayer(&audio.DiscardSink{})
	}
	return &Controller{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		log:   logx.Component("controller").With().Str("conversation_id", cfg.ConversationID).Logger(),
		phase: model.PhaseIdle,
		prefs: Preferences{SoundEnabled: cfg.SoundEnabled, Locale: cfg.Locale},
		subs:  map[int]chan Event{},
	}
}

// Load hydrates the message log from persistence. Only the first call reads.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	h, err := c.deps.Conversations.LoadHistory(ctx, c.cfg.ConversationID)
	if err != nil {
		return err
	}
	c.messages = slices.Clone(h.Messages)
	c.loaded = true
	c.log.Debug().Int("messages", len(c.messages)).Msg("conversation history loaded")
	return nil
}

func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *Controller) Phase() model.TurnPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Preferences() Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// SetPreferences updates sound and locale. Turning sound off stops any speech.
func (c *Controller) SetPreferences(p Preferences) Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.SoundEnabled = p.SoundEnabled
	if l := strings.TrimSpace(p.Locale); l != "" {
		c.prefs.Locale = l
	}
	if !c.prefs.SoundEnabled {
		c.interruptSpeechLocked()
	}
	return c.prefs
}

// QuotaRemaining reports today's remaining interactions; -1 means unlimited.
func (c *Controller) QuotaRemaining(ctx context.Context) (int, error) {
	return c.deps.Quota.Remaining(ctx, c.cfg.UserID)
}

// Reset clears the log and its persisted copy.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.Busy() {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.interruptSpeechLocked()
	c.messages = nil
	c.mu.Unlock()
	return c.deps.Conversations.ClearHistory(ctx, c.cfg.ConversationID)
}

// SubmitTurn runs one typed turn to completion. Only precondition failures are
// returned; everything else is logged and absorbed.
func (c *Controller) SubmitTurn(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.phase.Busy() {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.interruptSpeechLocked()
	c.setPhaseLocked(model.PhaseAwaitingResponse)
	c.mu.Unlock()

	c.runTurn(ctx, text)
	return nil
}

// runTurn is entered in AwaitingResponse and leaves in Idle or Speaking.
func (c *Controller) runTurn(ctx context.Context, text string) {
	log := c.log.With().Str("turn", "submit").Logger()

	allowed, err := c.deps.Quota.TryConsume(ctx, c.cfg.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("quota check failed, allowing turn")
		allowed = true
	}
	if !allowed {
		c.mu.Lock()
		c.appendLocked(model.NewMessage(model.RoleAssistant, LimitReachedMessage, c.now()))
		c.setPhaseLocked(model.PhaseIdle)
		c.mu.Unlock()
		c.publish(Event{Type: EventQuotaExhausted})
		log.Info().Str("user_id", c.cfg.UserID).Msg("interaction quota exhausted")
		c.persist(ctx)
		return
	}

	c.mu.Lock()
	c.appendLocked(model.NewMessage(model.RoleUser, text, c.now()))
	history := slices.Clone(c.messages)
	locale := c.prefs.Locale
	c.mu.Unlock()

	snap := c.loadSnapshot(ctx)
	today := c.now()

	turnCtx, cancel := context.WithTimeout(ctx, c.cfg.TurnTimeout)
	resp, err := c.deps.Advisor.Chat(turnCtx, advisor.Request{
		Messages: history,
		Snapshot: snap,
		Locale:   locale,
		Today:    today,
	})
	cancel()
	if err != nil {
		ev := log.Warn().Err(err).Str("kind", string(errx.KindOf(err)))
		if errors.Is(err, context.DeadlineExceeded) {
			ev = ev.Dur("timeout", c.cfg.TurnTimeout)
		}
		ev.Msg("advisor call failed")
		c.finishTurn(ctx)
		return
	}

	outcome := interpreter.Interpret(resp, today, snap.Categories)
	content := outcome.Text
	if len(outcome.Actions) > 0 {
		if done := c.executeActions(ctx, outcome.Actions); len(done) > 0 {
			content = interpreter.Confirmation(done)
			if outcome.Text != "" {
				content += "\n\n" + outcome.Text
			}
		}
	}
	if content == "" {
		log.Warn().Int("function_calls", len(resp.FunctionCalls)).Msg("advisor response had nothing to show")
		c.finishTurn(ctx)
		return
	}

	msg := model.NewMessage(model.RoleAssistant, content, c.now())
	msg.Suggestions = outcome.Suggestions

	c.mu.Lock()
	c.appendLocked(msg)
	plain := interpreter.StripEmphasis(content)
	speak := outcome.Speak && c.prefs.SoundEnabled && c.deps.Synthesizer != nil && plain != ""
	var (
		seq  uint64
		sctx context.Context
		done context.CancelFunc
	)
	if speak {
		seq, sctx, done = c.beginSpeakLocked(ctx)
	} else {
		c.setPhaseLocked(model.PhaseIdle)
	}
	c.mu.Unlock()

	c.persist(ctx)
	if speak {
		c.speak(sctx, done, seq, plain)
	}
}

func (c *Controller) finishTurn(ctx context.Context) {
	c.mu.Lock()
	c.setPhaseLocked(model.PhaseIdle)
	c.mu.Unlock()
	c.persist(ctx)
}

// loadSnapshot reads the ledger concurrently. Failures leave the affected
// slice empty.
func (c *Controller) loadSnapshot(ctx context.Context) model.FinancialSnapshot {
	var snap model.FinancialSnapshot
	if c.deps.Ledger == nil {
		return snap
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Expenses, err = c.deps.Ledger.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Budgets, err = c.deps.Ledger.ListBudgets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Categories, err = c.deps.Ledger.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.Warn().Err(err).Msg("financial snapshot incomplete")
	}
	return snap
}

func (c *Controller) executeActions(ctx context.Context, actions []model.Action) []model.Action {
	var done []model.Action
	for _, a := range actions {
		if a.Kind != model.ActionCreateExpense || c.deps.Ledger == nil {
			continue
		}
		saved, err := c.deps.Ledger.RecordExpense(ctx, model.Expense{
			Merchant: a.Expense.Merchant,
			Amount:   a.Expense.Amount,
			Category: a.Expense.Category,
			Date:     a.Expense.Date,
			Note:     a.Expense.Note,
		})
		if err != nil {
			c.log.Error().Err(err).Str("merchant", a.Expense.Merchant).Msg("failed to record expense")
			continue
		}
		c.log.Info().Str("expense_id", saved.ID).Float64("amount", saved.Amount).Str("category", saved.Category).Msg("expense recorded")
		action := a
		c.publish(Event{Type: EventActionExecuted, Action: &action, Expense: &saved})
		done = append(done, a)
	}
	return done
}

// persist rewrites the stored log. Errors are logged and absorbed.
func (c *Controller) persist(ctx context.Context) {
	msgs := c.Messages()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := c.deps.Conversations.SaveHistory(pctx, c.cfg.ConversationID, msgs); err != nil {
		c.log.Error().Err(err).Int("messages", len(msgs)).Msg("failed to persist conversation")
	}
}

// StartListening opens one capture session and, for a confident transcript,
// runs the resulting turn. It blocks until the session and any turn end.
func (c *Controller) StartListening(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case model.PhaseListening:
		c.mu.Unlock()
		return ErrAlreadyListening
	case model.PhaseAwaitingResponse:
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.interruptSpeechLocked()
	c.setPhaseLocked(model.PhaseListening)
	locale := c.prefs.Locale
	c.mu.Unlock()

	lctx, cancel := ctx, context.CancelFunc(func() {})
	if c.cfg.ListenTimeout > 0 {
		lctx, cancel = context.WithTimeout(ctx, c.cfg.ListenTimeout)
	}
	res := c.deps.Capturer.Listen(lctx, locale)
	cancel()

	log := c.log.With().Str("turn", "listen").Logger()
	if !res.OK() {
		switch res.ErrorKind {
		case speech.KindNoSpeech, speech.KindAborted:
			log.Debug().Str("kind", string(res.ErrorKind)).Msg("capture ended without speech")
		default:
			log.Warn().Str("kind", string(res.ErrorKind)).Msg("capture failed")
			c.publish(Event{Type: EventCaptureFailed, CaptureError: res.ErrorKind})
		}
		c.toIdle(model.PhaseListening)
		return nil
	}

	text := strings.TrimSpace(res.Transcript)
	if res.Confidence < c.cfg.ConfidenceThreshold || text == "" {
		log.Info().Float64("confidence", res.Confidence).Float64("threshold", c.cfg.ConfidenceThreshold).Msg("discarding low-confidence transcript")
		c.toIdle(model.PhaseListening)
		return nil
	}

	c.mu.Lock()
	if c.phase != model.PhaseListening {
		c.mu.Unlock()
		return nil
	}
	c.setPhaseLocked(model.PhaseAwaitingResponse)
	c.mu.Unlock()

	c.runTurn(ctx, text)
	return nil
}

// StopListening aborts the live capture session, if any.
func (c *Controller) StopListening() {
	c.deps.Capturer.Cancel()
}

func (c *Controller) toIdle(from model.TurnPhase) {
	c.mu.Lock()
	if c.phase == from {
		c.setPhaseLocked(model.PhaseIdle)
	}
	c.mu.Unlock()
}

// Speak reads text aloud when sound is enabled. It returns once playback has
// started (or speech was skipped); the controller stays Speaking until playback
// ends or is interrupted.
func (c *Controller) Speak(ctx context.Context, text string) error {
	plain := interpreter.StripEmphasis(text)

	c.mu.Lock()
	if !c.prefs.SoundEnabled || plain == "" || c.deps.Synthesizer == nil {
		c.mu.Unlock()
		return nil
	}
	if c.phase.Busy() {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	seq, sctx, done := c.beginSpeakLocked(ctx)
	c.mu.Unlock()

	c.speak(sctx, done, seq, plain)
	return nil
}

// StopSpeaking stops synthesis or playback. Safe to call at any time.
func (c *Controller) StopSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptSpeechLocked()
}

func (c *Controller) beginSpeakLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	c.interruptSpeechLocked()
	c.speakSeq++
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SpeechTimeout)
	c.speakCancel = cancel
	c.setPhaseLocked(model.PhaseSpeaking)
	return c.speakSeq, sctx, cancel
}

func (c *Controller) speak(ctx context.Context, done context.CancelFunc, seq uint64, text string) {
	defer done()
	c.mu.Lock()
	locale := c.prefs.Locale
	c.mu.Unlock()

	payload, err := c.deps.Synthesizer.Synthesize(ctx, text, locale)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("speech synthesis failed")
		}
		c.endSpeak(seq)
		return
	}
	buf, err := audio.DecodeBase64PCM16(payload, c.cfg.SampleRate, audio.DefaultChannels)
	if err != nil {
		c.log.Warn().Err(err).Msg("synthesized audio could not be decoded")
		c.endSpeak(seq)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakSeq != seq || c.phase != model.PhaseSpeaking {
		return
	}
	h, err := c.deps.Player.Play(buf, func(reason audio.StopReason) {
		c.onPlaybackDone(seq, reason)
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("playback failed to start")
		c.endSpeakLocked(seq)
		return
	}
	select {
	case <-h.Done():
	default:
		c.playback = h
	}
}

func (c *Controller) onPlaybackDone(seq uint64, reason audio.StopReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Debug().Str("reason", string(reason)).Msg("playback ended")
	c.endSpeakLocked(seq)
}

func (c *Controller) endSpeak(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endSpeakLocked(seq)
}

func (c *Controller) endSpeakLocked(seq uint64) {
	if c.speakSeq != seq {
		return
	}
	c.playback = nil
	c.speakCancel = nil
	if c.phase == model.PhaseSpeaking {
		c.setPhaseLocked(model.PhaseIdle)
	}
}

// interruptSpeechLocked cancels pending synthesis and stops playback without
// waiting for it to drain.
func (c *Controller) interruptSpeechLocked() {
	c.speakSeq++
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	if c.playback != nil {
		h := c.playback
		c.playback = nil
		h.Stop()
	}
	c.deps.Player.Stop()
	if c.phase == model.PhaseSpeaking {
		c.setPhaseLocked(model.PhaseIdle)
	}
}

func (c *Controller) appendLocked(m model.Message) {
	c.messages = append(c.messages, m)
	msg := m
	c.publish(Event{Type: EventMessageAppended, Message: &msg})
}

func (c *Controller) setPhaseLocked(p model.TurnPhase) {
	if c.phase == p {
		return
	}
	c.log.Debug().Str("from", c.phase.String()).Str("to", p.String()).Msg("phase changed")
	c.phase = p
	c.publish(Event{Type: EventPhaseChanged, Phase: p})
}
