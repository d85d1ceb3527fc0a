package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
	"google.golang.org/genai"
)

var ErrNoAudio = errors.New("tts: response carried no audio")

// Synthesizer converts text to base64 PCM16 (24 kHz mono).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, locale string) (string, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSynthesizer uses a Gemini TTS model with a prebuilt voice.
type GeminiSynthesizer struct {
	models contentGenerator
	model  string
	voice  string
}

func NewGeminiSynthesizer(client *genai.Client, cfg model.TTSConfig) *GeminiSynthesizer {
	return &GeminiSynthesizer{models: client.Models, model: cfg.Model, voice: cfg.Voice}
}

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text, locale string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errx.WrapSynthesis(errors.New("tts: empty text"))
	}

	prompt := text
	if locale != "" {
		prompt = fmt.Sprintf("Say in a friendly, natural voice (%s): %s", locale, text)
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}

	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		logx.Error().Err(err).Str("model", s.model).Msg("speech synthesis call failed")
		return "", errx.WrapSynthesis(err)
	}

	pcm := audioBytes(resp)
	if len(pcm) == 0 {
		return "", errx.WrapSynthesis(ErrNoAudio)
	}
	logx.Debug().Str("model", s.model).Str("voice", s.voice).Int("bytes", len(pcm)).Msg("speech synthesized")
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// audioBytes concatenates every inline audio part of the first candidate.
func audioBytes(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []byte
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.InlineData == nil {
			continue
		}
		if mt := p.InlineData.MIMEType; mt != "" && !strings.HasPrefix(mt, "audio/") {
			continue
		}
		out = append(out, p.InlineData.Data...)
	}
	return out
}
