// Package provider implements chat.Transport for the supported model
// backends: OpenAI-compatible chat completions, Google Gemini, Anthropic
// and Ollama.
package provider

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/minios-linux/aitranslate/chat"
	"github.com/minios-linux/aitranslate/logging"
)

// ---------------------------------------------------------------------------
// Engine IDs
// ---------------------------------------------------------------------------

const (
	EngineChatGPT   = "chatgpt"
	EngineGemini    = "gemini"
	EngineAnthropic = "anthropic"
	EngineOllama    = "ollama"
)

// ---------------------------------------------------------------------------
// Engine configuration
// ---------------------------------------------------------------------------

// Config describes how to reach one backend.
type Config struct {
	// Engine is one of the Engine* identifiers.
	Engine string
	// Model is the model identifier; empty selects the engine default.
	Model string
	// BaseURL overrides the engine's API base URL.
	BaseURL string
	// APIKey authenticates the requests (empty for local services).
	APIKey string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries bounds transport-level retries on 429/5xx. Default: 3.
	MaxRetries int
	// RequestsPerMinute is the shared quota of the three chats of a run.
	// Zero selects the engine default.
	RequestsPerMinute int
	// Temperature is the sampling temperature.
	Temperature float64
	// HistoryWindow is the number of messages each chat keeps.
	HistoryWindow int
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// Defaults holds the per-engine fallback values.
type Defaults struct {
	Name    string
	BaseURL string
	Model   string
	Timeout time.Duration
	RPM     int
}

var engines = map[string]Defaults{
	EngineChatGPT: {
		Name:    "OpenAI ChatGPT",
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
		Timeout: 120 * time.Second,
		RPM:     500,
	},
	EngineGemini: {
		Name:    "Google Gemini",
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   "gemini-2.0-flash",
		Timeout: 120 * time.Second,
		RPM:     15,
	},
	EngineAnthropic: {
		Name:    "Anthropic",
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-3-5-sonnet-latest",
		Timeout: 120 * time.Second,
		RPM:     50,
	},
	EngineOllama: {
		Name:    "Ollama",
		BaseURL: "http://localhost:11434",
		Model:   "llama3.3",
		Timeout: 300 * time.Second,
		RPM:     0,
	},
}

// Lookup returns the defaults of engine.
func Lookup(engine string) (Defaults, bool) {
	d, ok := engines[engine]
	return d, ok
}

// Engines returns the supported engine IDs in sorted order.
func Engines() []string {
	ids := make([]string, 0, len(engines))
	for id := range engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Config) defaults() Defaults {
	return engines[c.Engine]
}

func (c Config) effectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return c.defaults().Model
}

func (c Config) effectiveBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return c.defaults().BaseURL
}

func (c Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if d := c.defaults().Timeout; d > 0 {
		return d
	}
	return 120 * time.Second
}

func (c Config) effectiveMaxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

// EffectiveRPM returns the requests-per-minute quota; zero means unlimited.
func (c Config) EffectiveRPM() int {
	if c.RequestsPerMinute > 0 {
		return c.RequestsPerMinute
	}
	return c.defaults().RPM
}

func (c Config) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger.WithFields(map[string]any{"component": "provider", "engine": c.Engine})
	}
	return logging.NoOp()
}

// NewTransport returns the chat.Transport for cfg.Engine.
func NewTransport(cfg Config) (chat.Transport, error) {
	if _, ok := engines[cfg.Engine]; !ok {
		return nil, fmt.Errorf("unknown engine %q (supported: %s)", cfg.Engine, strings.Join(Engines(), ", "))
	}
	if cfg.Engine != EngineOllama && cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine %q requires an API key", cfg.Engine)
	}

	switch cfg.Engine {
	case EngineChatGPT:
		return newOpenAITransport(cfg), nil
	case EngineGemini:
		return newGeminiTransport(cfg), nil
	case EngineAnthropic:
		return newAnthropicTransport(cfg), nil
	default:
		return newOllamaTransport(cfg), nil
	}
}

// Factory returns a constructor of fresh chats that share one transport
// and limiter. A nil limiter builds one from the engine's quota.
func Factory(cfg Config, limiter chat.RateLimiter) (func(chat.Purpose) chat.Chat, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	if limiter == nil {
		limiter = chat.PerMinute(cfg.EffectiveRPM())
	}
	return func(chat.Purpose) chat.Chat {
		return chat.NewSession(transport, limiter, cfg.HistoryWindow)
	}, nil
}
