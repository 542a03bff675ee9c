package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minios-linux/aitranslate/chat"
)

// ollamaTransport calls a local Ollama server's /api/chat.
type ollamaTransport struct {
	poster      *poster
	baseURL     string
	model       string
	temperature float64
}

func newOllamaTransport(cfg Config) *ollamaTransport {
	return &ollamaTransport{
		poster:      newPoster(cfg),
		baseURL:     cfg.effectiveBaseURL(),
		model:       cfg.effectiveModel(),
		temperature: cfg.Temperature,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   map[string]any  `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

func buildOllamaRequest(model, instructions string, history []chat.Message, format *chat.Schema, temperature float64) ollamaRequest {
	req := ollamaRequest{Model: model}
	if instructions != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(chat.RoleSystem), Content: instructions})
	}
	for _, m := range history {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	if format != nil {
		req.Format = format.Definition
	}
	if temperature > 0 {
		req.Options = map[string]any{"temperature": temperature}
	}
	return req
}

func (t *ollamaTransport) Complete(ctx context.Context, instructions string, history []chat.Message, format *chat.Schema) (string, error) {
	body, err := t.poster.post(ctx, t.baseURL+"/api/chat", nil, buildOllamaRequest(t.model, instructions, history, format, t.temperature))
	if err != nil {
		return "", err
	}
	return parseOllamaResponse(body)
}

func parseOllamaResponse(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := apiError(raw); err != nil {
		return "", err
	}

	var resp struct {
		Message ollamaMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	return resp.Message.Content, nil
}
