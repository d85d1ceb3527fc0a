package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeMic struct {
	pcm []byte
	err error
}

func (m fakeMic) Record(context.Context, time.Duration) ([]byte, error) { return m.pcm, m.err }

type fakeTranscriber struct {
	got    []byte
	locale string
	tr     Transcript
	err    error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wav []byte, locale string) (Transcript, error) {
	f.got, f.locale = wav, locale
	return f.tr, f.err
}

func tone(n int, amp int16) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amp
		if i%2 == 1 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 1000, RMS(tone(100, 1000)), 0.001)
}

func TestMicRecognizer_Transcribes(t *testing.T) {
	tr := &fakeTranscriber{tr: Transcript{Text: "show my budget", Confidence: 0.8}}
	r := NewMicRecognizer(fakeMic{pcm: tone(1600, 3000)}, tr, time.Second, 250)

	var got []RecognitionEvent
	require.NoError(t, r.Start(context.Background(), "en-GB", func(ev RecognitionEvent) { got = append(got, ev) }))
	require.Len(t, got, 1)
	assert.True(t, got[0].Final)
	assert.Equal(t, "show my budget", got[0].Transcript)
	assert.Equal(t, "en-GB", tr.locale)
	assert.Equal(t, "RIFF", string(tr.got[:4]))
}

func TestMicRecognizer_SilenceIsNoSpeech(t *testing.T) {
	tr := &fakeTranscriber{}
	r := NewMicRecognizer(fakeMic{pcm: tone(1600, 10)}, tr, time.Second, 250)
	err := r.Start(context.Background(), "en-US", func(RecognitionEvent) {})
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.Nil(t, tr.got)
}

func TestMicRecognizer_ThroughCapturer(t *testing.T) {
	mic := fakeMic{err: ErrPermissionDenied}
	r := NewCapturer(NewMicRecognizer(mic, &fakeTranscriber{}, time.Second, 250)).Listen(context.Background(), "en-US")
	assert.Equal(t, KindPermissionDenied, r.ErrorKind)

	tr := &fakeTranscriber{err: errors.New("quota")}
	r = NewCapturer(NewMicRecognizer(fakeMic{pcm: tone(800, 4000)}, tr, time.Second, 250)).Listen(context.Background(), "en-US")
	assert.Equal(t, KindOther, r.ErrorKind)
}

func TestLineRecognizer(t *testing.T) {
	var prompt strings.Builder
	c := NewCapturer(NewLineRecognizer(strings.NewReader("add 12 dollars coffee\n\n"), &prompt))

	r := c.Listen(context.Background(), "en-US")
	require.True(t, r.OK())
	assert.Equal(t, "add 12 dollars coffee", r.Transcript)
	assert.Equal(t, 1.0, r.Confidence)

	r = c.Listen(context.Background(), "en-US")
	assert.Equal(t, KindNoSpeech, r.ErrorKind)

	r = c.Listen(context.Background(), "en-US")
	assert.Equal(t, KindAudioCaptureFailure, r.ErrorKind)
	assert.Contains(t, prompt.String(), "(speak) > ")
}

type fakeGenerator struct {
	text   string
	err    error
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = config
	f.parts = contents[0].Parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(f.text, genai.RoleModel),
	}}}, nil
}

func TestGeminiTranscriber(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"transcript\": \" hello \", \"confidence\": 1.4}\n```"}
	tr := &GeminiTranscriber{models: gen, model: "m"}

	got, err := tr.Transcribe(context.Background(), []byte("RIFF"), "en-US")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Len(t, gen.parts, 2)
	assert.Equal(t, "audio/wav", gen.parts[1].InlineData.MIMEType)

	gen.text = `{"transcript": "", "confidence": 0}`
	_, err = tr.Transcribe(context.Background(), nil, "en-US")
	assert.ErrorIs(t, err, ErrNoSpeech)

	gen.text = "not json"
	_, err = tr.Transcribe(context.Background(), nil, "en-US")
	assert.Error(t, err)
}
