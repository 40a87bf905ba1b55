package domain

import "context"

// Chat roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSONObject asks the provider to return a single JSON object.
	JSONObject bool
}

// Completer is the chat completion contract between layers.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
