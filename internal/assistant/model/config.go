package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	ID            string        `envconfig:"CONVERSATION_ID" default:"default"`
	UserID        string        `envconfig:"CONVERSATION_USER_ID" default:"local"`
	TTL           time.Duration `envconfig:"CONVERSATION_TTL" default:"720h"`
	TurnTimeout   time.Duration `envconfig:"CONVERSATION_TURN_TIMEOUT" default:"30s"`
	SpeechTimeout time.Duration `envconfig:"CONVERSATION_SPEECH_TIMEOUT" default:"20s"`
}

type AdvisorModelConfig struct {
	Model          string  `envconfig:"ADVISOR_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"ADVISOR_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"ADVISOR_TEMPERATURE" default:"0.4"`
	ThinkingBudget int32   `envconfig:"ADVISOR_THINKING_BUDGET" default:"1024"`
	HistoryTurns   int     `envconfig:"ADVISOR_HISTORY_TURNS" default:"20"`
	RecentExpenses int     `envconfig:"ADVISOR_RECENT_EXPENSES" default:"30"`
}

type AdvisorPromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Penny"`
	Currency      string `envconfig:"PROMPT_CURRENCY" default:"USD"`
}

type SpeechConfig struct {
	Locale              string        `envconfig:"SPEECH_LOCALE" default:"en-US"`
	ConfidenceThreshold float64       `envconfig:"SPEECH_CONFIDENCE_THRESHOLD" default:"0.5"`
	MaxDuration         time.Duration `envconfig:"SPEECH_MAX_DURATION" default:"8s"`
	SilenceRMS          float64       `envconfig:"SPEECH_SILENCE_RMS" default:"250"`
	MicCommand          string        `envconfig:"SPEECH_MIC_COMMAND" default:"arecord"`
	TranscribeModel     string        `envconfig:"SPEECH_TRANSCRIBE_MODEL" default:"gemini-2.5-flash"`
}

type TTSConfig struct {
	Enabled bool   `envconfig:"TTS_ENABLED" default:"true"`
	Model   string `envconfig:"TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	Voice   string `envconfig:"TTS_VOICE" default:"Kore"`
}

type AudioConfig struct {
	Sink       string `envconfig:"AUDIO_SINK" default:"ffplay"`
	FFPlayPath string `envconfig:"AUDIO_FFPLAY_PATH" default:"ffplay"`
	SampleRate int    `envconfig:"AUDIO_SAMPLE_RATE" default:"24000"`
	Volume     int    `envconfig:"AUDIO_VOLUME" default:"80"`
}

type QuotaConfig struct {
	DailyLimit int  `envconfig:"QUOTA_DAILY_LIMIT" default:"10"`
	Premium    bool `envconfig:"QUOTA_PREMIUM" default:"false"`
}

type LedgerConfig struct {
	DSN      string `envconfig:"LEDGER_DSN" default:"file:finpal.db?_foreign_keys=on"`
	SeedFile string `envconfig:"LEDGER_SEED_FILE"`
}
