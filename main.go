package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/finpal-core-poc-v1/assistant/internal/api"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/core"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
	pkgredis "github.com/finpal-core-poc-v1/assistant/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	Ledger model.LedgerConfig
	HTTP   api.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Assistant configs
	Conversation model.ConversationConfig
	Advisor      model.AdvisorModelConfig
	Prompt       model.AdvisorPromptConfig
	Speech       model.SpeechConfig
	TTS          model.TTSConfig
	Audio        model.AudioConfig
	Quota        model.QuotaConfig
}

func loadConfig(envFile string) (*AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil {
		logx.Debug().Err(err).Str("file", envFile).Msg("env file not loaded")
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	return &cfg, nil
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "finpal",
		Short:         "Voice-enabled finance assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	load := func() (*AppConfig, error) { return loadConfig(envFile) }
	root.AddCommand(newChatCmd(load), newVoiceCmd(load), newServeCmd(load))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logx.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
