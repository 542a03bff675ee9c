package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minios-linux/aitranslate/logging"
)

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// POST with retries
// ---------------------------------------------------------------------------

// poster sends JSON requests to one endpoint family, retrying 429s after the
// server-provided delay and 5xx/network failures with exponential backoff.
type poster struct {
	client     *http.Client
	name       string
	maxRetries int
	log        logging.Logger
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newPoster(cfg Config) *poster {
	return &poster{
		client:     makeHTTPClient(cfg.Proxy, cfg.effectiveTimeout()),
		name:       cfg.Engine,
		maxRetries: cfg.effectiveMaxRetries(),
		log:        cfg.logger(),
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// post marshals payload, sends it and returns the raw body of a 200 response.
func (p *poster) post(ctx context.Context, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		p.log.Debug("provider request", "engine", p.name, "attempt", attempt+1, "endpoint", endpoint)

		resp, err := p.client.Do(req)
		if err != nil {
			if attempt < p.maxRetries {
				if err := p.sleep(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryDelay := parseRetryDelay(respBody)
			p.log.Warn("rate limited", "engine", p.name, "wait", retryDelay.String(), "attempt", attempt+1, "max_retries", p.maxRetries)
			if attempt < p.maxRetries {
				if err := p.sleep(ctx, retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("rate limited after %d retries: %s", p.maxRetries, truncate(string(respBody), 500))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < p.maxRetries && resp.StatusCode >= 500 {
				if err := p.sleep(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("exhausted all %d retries", p.maxRetries)
}

// ---------------------------------------------------------------------------
// Rate limit: parse 429 response for retry delay
// ---------------------------------------------------------------------------

// parseRetryDelay extracts the retry delay from a 429 response body.
// Looks for Google's RetryInfo detail with retryDelay field.
// Returns the delay to wait, defaulting to 60s + 5s buffer.
func parseRetryDelay(body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}

	return defaultDelay
}

// apiError returns the message of an {"error": ...} envelope, if any.
func apiError(raw map[string]any) error {
	errObj, ok := raw["error"]
	if !ok || errObj == nil {
		return nil
	}
	if errMap, ok := errObj.(map[string]any); ok {
		if msg, ok := errMap["message"].(string); ok {
			return fmt.Errorf("API error: %s", msg)
		}
	}
	if msg, ok := errObj.(string); ok {
		return fmt.Errorf("API error: %s", msg)
	}
	return fmt.Errorf("API error: %v", errObj)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
