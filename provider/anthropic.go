package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minios-linux/aitranslate/chat"
)

const anthropicVersion = "2023-06-01"

// anthropicTransport calls the Messages API.
type anthropicTransport struct {
	poster      *poster
	baseURL     string
	model       string
	apiKey      string
	temperature float64
}

func newAnthropicTransport(cfg Config) *anthropicTransport {
	return &anthropicTransport{
		poster:      newPoster(cfg),
		baseURL:     cfg.effectiveBaseURL(),
		model:       cfg.effectiveModel(),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

func buildAnthropicRequest(model, instructions string, history []chat.Message, format *chat.Schema, temperature float64) anthropicRequest {
	req := anthropicRequest{
		Model:       model,
		MaxTokens:   8192,
		System:      schemaInstructions(instructions, format),
		Temperature: temperature,
	}
	for _, t := range alternate(history, "assistant") {
		req.Messages = append(req.Messages, anthropicMessage{Role: t.role, Content: t.text})
	}
	return req
}

func (t *anthropicTransport) Complete(ctx context.Context, instructions string, history []chat.Message, format *chat.Schema) (string, error) {
	headers := map[string]string{"anthropic-version": anthropicVersion}
	if t.apiKey != "" {
		headers["x-api-key"] = t.apiKey
	}

	body, err := t.poster.post(ctx, t.baseURL+"/messages", headers, buildAnthropicRequest(t.model, instructions, history, format, t.temperature))
	if err != nil {
		return "", err
	}
	return parseAnthropicResponse(body)
}

// parseAnthropicResponse concatenates the text blocks of content[].
func parseAnthropicResponse(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := apiError(raw); err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
