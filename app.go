package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/advisor"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/audio"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/controller"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/repo"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/speech"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/tts"
	"github.com/finpal-core-poc-v1/assistant/internal/core"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

type recognizerMode int

const (
	recognizeMic recognizerMode = iota
	recognizeStdin
)

// app is the wired controller plus everything that needs closing.
type app struct {
	ctrl    *controller.Controller
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logx.Warn().Err(err).Msg("close failed")
		}
	}
}

func buildApp(ctx context.Context, cfg *AppConfig, mode recognizerMode) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	client, err := advisor.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	chat, err := advisor.NewChatModel(ctx, client, cfg.Advisor)
	if err != nil {
		return nil, err
	}
	adv := advisor.NewService(chat, advisor.Config{
		ModelName:      cfg.Advisor.Model,
		Prompt:         cfg.Prompt,
		HistoryTurns:   cfg.Advisor.HistoryTurns,
		RecentExpenses: cfg.Advisor.RecentExpenses,
	})

	var (
		convs model.ConversationRepository
		quota model.QuotaCounter
	)
	if cfg.Redis.URL != "" {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		convs = repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL)
		quota = repo.NewRedisQuotaCounter(rdb, cfg.Quota)
		logx.Info().Msg("connected to redis")
	} else {
		convs = repo.NewMemoryConversationRepository()
		quota = repo.NewMemoryQuotaCounter(cfg.Quota)
		logx.Warn().Msg("REDIS_URL not set, conversation history and quota are kept in memory")
	}

	ledger, err := openLedger(ctx, cfg.Ledger, a)
	if err != nil {
		return nil, err
	}

	var synth tts.Synthesizer
	if cfg.TTS.Enabled {
		synth = tts.NewGeminiSynthesizer(client, cfg.TTS)
	}

	sinkKind := cfg.Audio.Sink
	if core.ParseEnvironment(cfg.Environment).IsTesting() {
		sinkKind = "discard"
	}
	player := audio.NewPlayer(audio.NewSink(sinkKind, cfg.Audio.FFPlayPath, cfg.Audio.Volume))
	a.closers = append(a.closers, func() error { player.Stop(); return nil })

	var (
		rec           speech.Recognizer
		listenTimeout time.Duration
	)
	switch mode {
	case recognizeStdin:
		rec = speech.NewLineRecognizer(os.Stdin, os.Stdout)
	default:
		rec = speech.NewMicRecognizer(
			speech.NewExecMicrophone(cfg.Speech.MicCommand),
			speech.NewGeminiTranscriber(client, cfg.Speech.TranscribeModel),
			cfg.Speech.MaxDuration,
			cfg.Speech.SilenceRMS,
		)
		listenTimeout = cfg.Speech.MaxDuration + cfg.Conversation.SpeechTimeout
	}

	a.ctrl = controller.New(controller.Config{
		ConversationID:      cfg.Conversation.ID,
		UserID:              cfg.Conversation.UserID,
		Locale:              cfg.Speech.Locale,
		ConfidenceThreshold: cfg.Speech.ConfidenceThreshold,
		TurnTimeout:         cfg.Conversation.TurnTimeout,
		SpeechTimeout:       cfg.Conversation.SpeechTimeout,
		ListenTimeout:       listenTimeout,
		SampleRate:          cfg.Audio.SampleRate,
		SoundEnabled:        synth != nil && sinkKind != "none",
	}, controller.Deps{
		Advisor:       adv,
		Synthesizer:   synth,
		Conversations: convs,
		Ledger:        ledger,
		Quota:         quota,
		Capturer:      speech.NewCapturer(rec),
		Player:        player,
	})
	if err := a.ctrl.Load(ctx); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func openLedger(ctx context.Context, cfg model.LedgerConfig, a *app) (model.LedgerRepository, error) {
	seed := repo.DefaultLedgerSeed()
	if cfg.SeedFile != "" {
		s, err := repo.LoadLedgerSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = s
	}

	if cfg.DSN == "" {
		logx.Warn().Msg("LEDGER_DSN not set, expenses are kept in memory")
		return repo.NewMemoryLedger(seed), nil
	}
	l, err := repo.NewSQLiteLedger(cfg.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, l.Close)
	if err := l.ApplySeed(ctx, seed); err != nil {
		return nil, err
	}
	return l, nil
}

// waitIdle blocks until the controller leaves Speaking (or ctx ends).
func waitIdle(ctx context.Context, ctrl *controller.Controller) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for ctrl.Phase() != model.PhaseIdle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

var errQuit = errors.New("quit")
