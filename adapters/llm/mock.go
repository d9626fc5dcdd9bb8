package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
)

// MockGenerator echoes canned replies for development without a Gemini
// key. Replies vary with the prompt so conversation flow stays visible.
type MockGenerator struct {
	logger *zap.Logger
}

// NewMockGenerator creates a mock response generator
func NewMockGenerator(logger *zap.Logger) repositories.ResponseGenerator {
	return &MockGenerator{logger: logger}
}

// Generate implements repositories.ResponseGenerator
func (m *MockGenerator) Generate(ctx context.Context, prompt string, history []repositories.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.logger.Debug("Generating mock response",
		zap.Int("promptLength", len(prompt)),
		zap.Int("historyTurns", len(history)))

	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! It's great to hear from you. What would you like to talk about?", nil
	case strings.Contains(lower, "how are you"):
		return "I'm doing well, thank you for asking! How has your day been?", nil
	case strings.Contains(lower, "thank"):
		return "You're very welcome. Is there anything else I can help with?", nil
	case len(strings.Fields(prompt)) > 12:
		return "That sounds like quite a story. What happened next?", nil
	default:
		return "That's interesting! Tell me more about that.", nil
	}
}
