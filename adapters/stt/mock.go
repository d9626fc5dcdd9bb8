package stt

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
)

// MockTranscriber is a placeholder recognizer for development without
// Google Cloud credentials. The returned text scales with segment size
// so the downstream pipeline sees varied inputs.
type MockTranscriber struct {
	logger *zap.Logger
}

// NewMockTranscriber creates a mock speech recognizer
func NewMockTranscriber(logger *zap.Logger) repositories.Transcriber {
	return &MockTranscriber{logger: logger}
}

// Transcribe implements repositories.Transcriber
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (repositories.TranscriptResult, error) {
	if err := ctx.Err(); err != nil {
		return repositories.TranscriptResult{}, err
	}
	if len(audio) == 0 {
		return repositories.TranscriptResult{}, fmt.Errorf("no audio data received")
	}

	m.logger.Debug("Processing mock transcription",
		zap.Int("audioSize", len(audio)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	var text string
	switch {
	case len(audio) > 10000:
		text = "Hello there, how are you doing today? I wanted to tell you about my day."
	case len(audio) > 5000:
		text = "Thanks for listening to me."
	case len(audio) > 1000:
		text = "Hello!"
	default:
		text = "Hi"
	}

	return repositories.TranscriptResult{
		Text:       text,
		Confidence: 0.92,
		IsFinal:    true,
		AudioSpan:  audioSpan(len(audio), config.SampleRate),
		DecodedAt:  time.Now(),
	}, nil
}
