package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	parts  []*genai.Part
	err    error
	model  string
	config *genai.GenerateContentConfig
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.config = model, config
	f.prompt = contents[0].Parts[0].Text
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts(f.parts, genai.RoleModel),
	}}}, nil
}

func TestGeminiSynthesizer_ReturnsBase64PCM(t *testing.T) {
	gen := &fakeGenerator{parts: []*genai.Part{
		genai.NewPartFromBytes([]byte{1, 0, 2, 0}, "audio/L16;codec=pcm;rate=24000"),
		genai.NewPartFromBytes([]byte{3, 0}, "audio/L16;codec=pcm;rate=24000"),
	}}
	s := &GeminiSynthesizer{models: gen, model: "tts-model", voice: "Kore"}

	got, err := s.Synthesize(context.Background(), "You spent $50.", "en-US")
	require.NoError(t, err)

	pcm, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, pcm)
	assert.Equal(t, "tts-model", gen.model)
	assert.Equal(t, []string{"AUDIO"}, gen.config.ResponseModalities)
	assert.Equal(t, "Kore", gen.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Contains(t, gen.prompt, "You spent $50.")
}

func TestGeminiSynthesizer_NoAudio(t *testing.T) {
	s := &GeminiSynthesizer{models: &fakeGenerator{parts: []*genai.Part{genai.NewPartFromText("sorry")}}, model: "m"}

	_, err := s.Synthesize(context.Background(), "hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Equal(t, errx.KindSynthesis, errx.KindOf(err))
}

func TestGeminiSynthesizer_Failures(t *testing.T) {
	boom := errors.New("unavailable")
	s := &GeminiSynthesizer{models: &fakeGenerator{err: boom}, model: "m"}

	_, err := s.Synthesize(context.Background(), "hello", "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errx.KindSynthesis, errx.KindOf(err))

	_, err = s.Synthesize(context.Background(), "   ", "")
	assert.Equal(t, errx.KindSynthesis, errx.KindOf(err))
}
