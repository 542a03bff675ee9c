package chat

import (
	"context"
	"fmt"
)

// Session implements Chat on top of a Transport. Every call carries the full
// retained history; a shared RateLimiter spaces calls across sessions.
type Session struct {
	transport Transport
	limiter   RateLimiter
	params    Params
	history   History
}

// NewSession returns a Session. limiter may be nil; window <= 0 keeps
// DefaultWindow messages.
func NewSession(transport Transport, limiter RateLimiter, window int) *Session {
	return &Session{
		transport: transport,
		limiter:   limiter,
		history:   History{Window: window},
	}
}

func (s *Session) StartChat(params Params) {
	s.params = params
	s.history.Reset()
}

// Params returns the parameters the session was started with.
func (s *Session) Params() Params {
	return s.params
}

// History returns a copy of the retained messages.
func (s *Session) History() []Message {
	return s.history.Messages()
}

// SendMessage records message as a user turn and asks the transport for a
// reply. On any error, including a failed rate limiter wait, or an empty
// reply the user turn stays in the history until the caller rolls it back.
func (s *Session) SendMessage(ctx context.Context, message string, format *Schema) (string, error) {
	s.history.Append(RoleUser, message)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reply, err := s.transport.Complete(ctx, s.params.Instructions, s.history.Messages(), format)
	if s.limiter != nil {
		s.limiter.APICalled()
	}
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", s.purpose(), err)
	}
	if reply == "" {
		return "", nil
	}

	s.history.Append(RoleAssistant, reply)
	return reply, nil
}

func (s *Session) ResetChatHistory() {
	s.history.Reset()
}

func (s *Session) RollbackLastMessage() {
	s.history.Rollback()
}

func (s *Session) InvalidTranslation() {
	s.history.Append(RoleSystem, InvalidTranslationMessage)
}

func (s *Session) InvalidStyling() {
	s.history.Append(RoleSystem, InvalidStylingMessage)
}

func (s *Session) purpose() string {
	if s.params.Purpose == "" {
		return "model"
	}
	return string(s.params.Purpose)
}
