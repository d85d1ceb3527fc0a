package advisor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

var ErrEmptyResponse = errors.New("advisor: model returned neither text nor function calls")

// Request is everything the advisor needs for one turn.
type Request struct {
	Messages []model.Message
	Snapshot model.FinancialSnapshot
	Locale   string
	Today    time.Time
}

type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
}

// Response is the raw model reply; the interpreter decides what it means.
type Response struct {
	Text          string
	FunctionCalls []FunctionCall
	Usage         *schema.TokenUsage
}

// Advisor is the external chat/advisor service.
type Advisor interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}

type Config struct {
	ModelName      string
	Prompt         model.AdvisorPromptConfig
	HistoryTurns   int
	RecentExpenses int
}

// Service calls an eino chat model with the rendered system prompt and the
// trailing window of the conversation.
type Service struct {
	chat      einomodel.BaseChatModel
	cfg       Config
	callbacks einocb.Handler
}

func NewService(chat einomodel.BaseChatModel, cfg Config) *Service {
	return &Service{chat: chat, cfg: cfg, callbacks: NewCallbacks()}
}

func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	if req.Today.IsZero() {
		req.Today = time.Now()
	}
	system, err := RenderSystemPrompt(ctx, s.cfg.Prompt, req.Snapshot, req.Locale, req.Today, s.cfg.RecentExpenses)
	if err != nil {
		return nil, err
	}

	input := append([]*schema.Message{schema.SystemMessage(system)}, toSchemaMessages(trimTail(req.Messages, s.cfg.HistoryTurns))...)

	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "advisor",
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	}, s.callbacks)

	out, err := s.chat.Generate(ctx, input)
	if err != nil {
		return nil, errx.WrapModel(err)
	}

	resp := fromSchemaMessage(out)
	if resp.Text == "" && len(resp.FunctionCalls) == 0 {
		return nil, errx.NewKind(errx.KindEmptyResponse, ErrEmptyResponse, http.StatusBadGateway, errx.ModelErrorMessage)
	}

	if resp.Usage != nil {
		in, outCost, total := ComputeCost(resp.Usage, ResolvePricing(s.cfg.ModelName))
		logx.Info().
			Str("model", s.cfg.ModelName).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Float64("input_cost_usd", in).
			Float64("output_cost_usd", outCost).
			Float64("total_cost_usd", total).
			Msg("advisor usage")
	}
	return resp, nil
}

func fromSchemaMessage(m *schema.Message) *Response {
	resp := &Response{}
	if m == nil {
		return resp
	}
	resp.Text = strings.TrimSpace(m.Content)
	for _, tc := range m.ToolCalls {
		resp.FunctionCalls = append(resp.FunctionCalls, FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if m.ResponseMeta != nil {
		resp.Usage = m.ResponseMeta.Usage
	}
	return resp
}

func toSchemaMessages(msgs []model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}

// trimTail keeps the last maxMessages entries (<= 0 keeps everything) and
// drops leading assistant messages so the window opens with a user turn.
func trimTail(messages []model.Message, maxMessages int) []model.Message {
	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	for len(messages) > 0 && messages[0].Role != model.RoleUser {
		messages = messages[1:]
	}
	return messages
}

var _ Advisor = (*Service)(nil)
