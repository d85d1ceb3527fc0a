package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/controller"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/repo"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CONVERSATION_ID", "conv-42")
	t.Setenv("CONVERSATION_TURN_TIMEOUT", "12s")
	t.Setenv("QUOTA_DAILY_LIMIT", "3")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LEDGER_DSN", "")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "conv-42", cfg.Conversation.ID)
	assert.Equal(t, 12*time.Second, cfg.Conversation.TurnTimeout)
	assert.Equal(t, 3, cfg.Quota.DailyLimit)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "en-US", cfg.Speech.Locale)
	assert.InDelta(t, 0.5, cfg.Speech.ConfidenceThreshold, 1e-9)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestOpenLedgerFallsBackToMemory(t *testing.T) {
	a := &app{}
	l, err := openLedger(context.Background(), model.LedgerConfig{}, a)
	require.NoError(t, err)
	assert.IsType(t, &repo.MemoryLedger{}, l)
	assert.Empty(t, a.closers)

	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db")
	l, err = openLedger(context.Background(), model.LedgerConfig{DSN: dsn}, a)
	require.NoError(t, err)
	defer a.Close()
	cats, err := l.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(repo.DefaultLedgerSeed().Categories))
}

func TestRunChatLineCommands(t *testing.T) {
	ctrl := controller.New(controller.Config{ConversationID: "c", SoundEnabled: true}, controller.Deps{
		Conversations: repo.NewMemoryConversationRepository(),
		Quota:         repo.NewMemoryQuotaCounter(model.QuotaConfig{Premium: true}),
	})
	ctx := context.Background()
	var out bytes.Buffer

	assert.NoError(t, runChatLine(ctx, ctrl, &out, "   "))
	assert.ErrorIs(t, runChatLine(ctx, ctrl, &out, "/quit"), errQuit)

	require.NoError(t, runChatLine(ctx, ctrl, &out, "/sound off"))
	assert.False(t, ctrl.Preferences().SoundEnabled)
	require.NoError(t, runChatLine(ctx, ctrl, &out, "/sound on"))
	assert.True(t, ctrl.Preferences().SoundEnabled)

	require.NoError(t, runChatLine(ctx, ctrl, &out, "/reset"))
	assert.Contains(t, out.String(), "(history cleared)")
}

func TestPrintMessage(t *testing.T) {
	var out bytes.Buffer
	msg := model.Message{Role: model.RoleAssistant, Content: "Food is at 80%.", Suggestions: []string{"Show budgets"}}
	printMessage(&out, msg, "Penny")
	printMessage(&out, model.Message{Role: model.RoleUser, Content: "hi"}, "Penny")
	assert.Equal(t, "Penny: Food is at 80%.\n  - Show budgets\nYou: hi\n", out.String())
}
