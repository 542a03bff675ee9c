package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/minios-linux/aitranslate/chat"
	"github.com/minios-linux/aitranslate/logging"
)

// openAITransport talks to any OpenAI-compatible chat completions API.
type openAITransport struct {
	client      openai.Client
	model       string
	temperature float64
	log         logging.Logger
}

func newOpenAITransport(cfg Config) *openAITransport {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.effectiveBaseURL()),
		option.WithHTTPClient(makeHTTPClient(cfg.Proxy, cfg.effectiveTimeout())),
		option.WithMaxRetries(cfg.effectiveMaxRetries()),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &openAITransport{
		client:      openai.NewClient(opts...),
		model:       cfg.effectiveModel(),
		temperature: cfg.Temperature,
		log:         cfg.logger(),
	}
}

func (t *openAITransport) Complete(ctx context.Context, instructions string, history []chat.Message, format *chat.Schema) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.model),
		Messages: openAIMessages(instructions, history),
	}
	if t.temperature > 0 {
		params.Temperature = openai.Float(t.temperature)
	}
	if format != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   format.Name,
					Schema: format.Definition,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	t.log.Debug("chat completion", "model", t.model, "messages", len(params.Messages), "structured", format != nil)

	completion, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func openAIMessages(instructions string, history []chat.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if instructions != "" {
		msgs = append(msgs, openai.SystemMessage(instructions))
	}
	for _, m := range history {
		switch m.Role {
		case chat.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}
