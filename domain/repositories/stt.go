package repositories

import (
	"context"
	"time"
)

// Transcriber abstracts speech recognition services
type Transcriber interface {
	// Transcribe converts one buffered audio segment to text
	Transcribe(ctx context.Context, audio []byte, config AudioConfig) (TranscriptResult, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	Language       string `json:"language"`
	InterimResults bool   `json:"interim_results"`
}

// TranscriptResult is the normalized output of one recognition call
type TranscriptResult struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	IsFinal    bool          `json:"is_final"`
	AudioSpan  time.Duration `json:"audio_span"`
	DecodedAt  time.Time     `json:"decoded_at"`
}
