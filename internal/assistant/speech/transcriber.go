package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Transcript struct {
	Text       string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Transcriber turns a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, locale string) (Transcript, error)
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTranscriber asks a Gemini model for a JSON transcript with a
// self-reported confidence.
type GeminiTranscriber struct {
	models contentGenerator
	model  string
}

func NewGeminiTranscriber(client *genai.Client, model string) *GeminiTranscriber {
	return &GeminiTranscriber{models: client.Models, model: model}
}

const transcribePrompt = `Transcribe the speech in this recording. The speaker's locale is %s.
Return JSON {"transcript": string, "confidence": number between 0 and 1}.
If nothing intelligible is said return an empty transcript and confidence 0.`

var transcriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"transcript": {Type: genai.TypeString},
		"confidence": {Type: genai.TypeNumber},
	},
	Required: []string{"transcript", "confidence"},
}

func (t *GeminiTranscriber) Transcribe(ctx context.Context, wav []byte, locale string) (Transcript, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(transcribePrompt, locale)),
			genai.NewPartFromBytes(wav, "audio/wav"),
		}, genai.RoleUser),
	}
	resp, err := t.models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptSchema,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}
	return parseTranscript(resp.Text())
}

func parseTranscript(raw string) (Transcript, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var tr Transcript
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &tr); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: decode response: %w", err)
	}
	tr.Text = strings.TrimSpace(tr.Text)
	tr.Confidence = min(max(tr.Confidence, 0), 1)
	if tr.Text == "" {
		return Transcript{}, ErrNoSpeech
	}
	return tr, nil
}
