package advisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
)

type fakeChatModel struct {
	out   *schema.Message
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.input = input
	return f.out, f.err
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

var today = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		ModelName:      "gemini-2.5-flash",
		Prompt:         model.AdvisorPromptConfig{AssistantName: "Penny", Currency: "USD"},
		HistoryTurns:   4,
		RecentExpenses: 2,
	}
}

func history(n int) []model.Message {
	var out []model.Message
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out = append(out, model.NewMessage(role, fmt.Sprintf("m%d", i), today))
	}
	return out
}

func TestServiceChat_TextAndWindow(t *testing.T) {
	fake := &fakeChatModel{out: &schema.Message{
		Role:    schema.Assistant,
		Content: "  You spent **$120** on food.  ",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100}},
	}}
	s := NewService(fake, testConfig())

	resp, err := s.Chat(context.Background(), Request{Messages: history(7), Locale: "en-US", Today: today})
	require.NoError(t, err)
	assert.Equal(t, "You spent **$120** on food.", resp.Text)
	assert.Empty(t, resp.FunctionCalls)
	require.NotNil(t, resp.Usage)

	// system + last 4 minus the leading assistant message
	require.Len(t, fake.input, 4)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Contains(t, fake.input[0].Content, "Penny")
	assert.Contains(t, fake.input[0].Content, "2026-03-14")
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.Equal(t, "m4", fake.input[1].Content)
	assert.Equal(t, "m6", fake.input[3].Content)
}

func TestServiceChat_FunctionCalls(t *testing.T) {
	fake := &fakeChatModel{out: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: ToolCreateExpense, Arguments: `{"merchant":"Market","amount":50}`},
		}},
	}}
	resp, err := NewService(fake, testConfig()).Chat(context.Background(), Request{Messages: history(1), Today: today})
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls, 1)
	assert.Equal(t, FunctionCall{ID: "call-1", Name: ToolCreateExpense, Arguments: `{"merchant":"Market","amount":50}`}, resp.FunctionCalls[0])
}

func TestServiceChat_Errors(t *testing.T) {
	_, err := NewService(&fakeChatModel{out: &schema.Message{Content: "   "}}, testConfig()).
		Chat(context.Background(), Request{Messages: history(1), Today: today})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, errx.KindEmptyResponse, errx.KindOf(err))

	boom := errors.New("503")
	_, err = NewService(&fakeChatModel{err: boom}, testConfig()).
		Chat(context.Background(), Request{Messages: history(1), Today: today})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errx.KindModelCall, errx.KindOf(err))
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 100_000}, ResolvePricing("gemini-2.5-flash"))
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 0.25, out, 1e-9)
	assert.InDelta(t, 0.55, total, 1e-9)

	_, _, total = ComputeCost(nil, Pricing{})
	assert.Zero(t, total)
	assert.Equal(t, Pricing{}, ResolvePricing("unknown"))
}

func TestCreateExpenseTool(t *testing.T) {
	info := CreateExpenseTool()
	assert.Equal(t, ToolCreateExpense, info.Name)
	require.NotNil(t, info.ParamsOneOf)
	assert.Len(t, Tools(), 1)
}
