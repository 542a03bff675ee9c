// Package chat defines the conversational capability the translation engine
// drives, plus a reusable Session that keeps history, applies rollbacks and
// rate limiting on top of any single-call backend Transport.
package chat

import "context"

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Purpose names the job a chat performs within a translation run.
type Purpose string

const (
	PurposeGenerate          Purpose = "generate"
	PurposeVerifyTranslation Purpose = "verify-translation"
	PurposeVerifyStyling     Purpose = "verify-styling"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Params configures a conversation when it is started.
type Params struct {
	Purpose Purpose
	// Instructions is sent as the system instruction of every call.
	Instructions string
}

// Schema describes a structured response. Definition is a JSON Schema
// document; backends that support structured output forward it.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Chat is a stateful conversation with a model backend.
// Implementations are not safe for concurrent use.
type Chat interface {
	StartChat(params Params)
	// SendMessage appends message to the history and returns the reply.
	// An empty reply with a nil error means the backend returned nothing.
	SendMessage(ctx context.Context, message string, format *Schema) (string, error)
	ResetChatHistory()
	// RollbackLastMessage removes the most recent exchange so the next
	// message is conditioned only on earlier accepted turns.
	RollbackLastMessage()
	// InvalidTranslation injects a corrective turn after a rejected translation.
	InvalidTranslation()
	// InvalidStyling injects a corrective turn after a styling mismatch.
	InvalidStyling()
}

// Transport performs a single completion call over a full history.
type Transport interface {
	Complete(ctx context.Context, instructions string, history []Message, format *Schema) (string, error)
}

// Corrective turns injected by InvalidTranslation and InvalidStyling.
const (
	InvalidTranslationMessage = "The provided translation is incorrect. Re-attempt the translation and conform to the same rules as the original prompt."
	InvalidStylingMessage     = "Although the provided translation was correct, the styling was not maintained. Re-attempt the translation and ensure that the output text maintains the same style as the original prompt."
)
