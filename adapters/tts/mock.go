package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
)

// MockSynthesizer produces silence-filled PCM buffers sized from the
// input text, for development without an Eleven Labs key. Buffer length
// roughly tracks spoken duration so delivery pacing stays realistic.
type MockSynthesizer struct {
	logger *zap.Logger
}

// NewMockSynthesizer creates a mock text-to-speech service
func NewMockSynthesizer(logger *zap.Logger) repositories.Synthesizer {
	return &MockSynthesizer{logger: logger}
}

// Synthesize implements repositories.Synthesizer
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, config repositories.VoiceConfig) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	// ~80ms of 16kHz 16-bit mono audio per word.
	words := len(strings.Fields(text))
	audio := make([]byte, words*2560)

	m.logger.Debug("Synthesized mock speech",
		zap.Int("words", words),
		zap.Int("audioBytes", len(audio)))
	return audio, nil
}
