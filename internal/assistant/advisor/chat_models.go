package advisor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

// NewGenAIClient creates the Gemini client shared by the advisor, speech
// synthesis and transcription.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModel creates the advisor chat model with the create_expense tool bound.
func NewChatModel(ctx context.Context, client *genai.Client, cfg model.AdvisorModelConfig) (*gemini.ChatModel, error) {
	gcfg := &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	}
	if cfg.ThinkingBudget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(cfg.ThinkingBudget),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, gcfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating advisor model")
		return nil, fmt.Errorf("error creating advisor model: %w", err)
	}

	if err := chatModel.BindTools(Tools()); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	logx.Debug().Str("model", cfg.Model).Msg("Successfully bound tools to advisor model")
	return chatModel, nil
}
