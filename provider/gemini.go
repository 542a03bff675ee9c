package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/minios-linux/aitranslate/chat"
)

// geminiTransport calls the native generateContent endpoint.
type geminiTransport struct {
	poster      *poster
	baseURL     string
	model       string
	apiKey      string
	temperature float64
}

func newGeminiTransport(cfg Config) *geminiTransport {
	return &geminiTransport{
		poster:      newPoster(cfg),
		baseURL:     cfg.effectiveBaseURL(),
		model:       cfg.effectiveModel(),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature        float64        `json:"temperature,omitempty"`
	ResponseMimeType   string         `json:"responseMimeType,omitempty"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
}

func buildGeminiRequest(instructions string, history []chat.Message, format *chat.Schema, temperature float64) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{Temperature: temperature},
	}
	for _, t := range alternate(history, "model") {
		req.Contents = append(req.Contents, geminiContent{Role: t.role, Parts: []geminiPart{{Text: t.text}}})
	}
	if instructions != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: instructions}}}
	}
	if format != nil {
		req.GenerationConfig.ResponseMimeType = "application/json"
		req.GenerationConfig.ResponseJSONSchema = format.Definition
	}
	return req
}

func (t *geminiTransport) Complete(ctx context.Context, instructions string, history []chat.Message, format *chat.Schema) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", t.baseURL, url.PathEscape(t.model))
	headers := map[string]string{}
	if t.apiKey != "" {
		headers["x-goog-api-key"] = t.apiKey
	}

	body, err := t.poster.post(ctx, endpoint, headers, buildGeminiRequest(instructions, history, format, t.temperature))
	if err != nil {
		return "", err
	}
	return parseGeminiResponse(body)
}

// parseGeminiResponse returns candidates[0].content.parts[*].text joined.
// A response without candidates (e.g. blocked by safety filters) is empty.
func parseGeminiResponse(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := apiError(raw); err != nil {
		return "", err
	}

	var resp struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}
