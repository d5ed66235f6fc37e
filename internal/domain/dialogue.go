package domain

import "context"

// Role is the role label a dialogue service expects for a history entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Message struct {
	Role Role
	Text string
}

// GenerationConfig holds opaque generation knobs. They are passed to the
// dialogue service as-is; nil pointers mean "provider default".
type GenerationConfig struct {
	Temperature      *float32
	TopP             *float32
	TopK             *float32
	MaxOutputTokens  int32
	ResponseMIMEType string
}

// DialogueService produces the next model reply for a conversation.
//
// An early stop with usable partial text is reported as *EarlyStopError.
type DialogueService interface {
	Reply(ctx context.Context, history []Message, message string, cfg GenerationConfig) (string, error)
}

// Preceding returns history without its last entry when that entry is the
// user message being sent, so a provider request carries the message once.
func Preceding(history []Message, message string) []Message {
	if n := len(history); n > 0 && history[n-1].Role == RoleUser && history[n-1].Text == message {
		return history[:n-1]
	}
	return history
}
