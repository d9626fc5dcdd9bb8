package repositories

import "context"

// ResponseGenerator abstracts any chat/LLM provider
type ResponseGenerator interface {
	// Generate takes an assembled prompt plus prior conversation turns
	// and returns the model's reply
	Generate(ctx context.Context, prompt string, history []ChatMessage) (string, error)
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)
