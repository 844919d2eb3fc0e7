// Package ai holds the outbound clients used for report summaries and document parsing.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/qa-reports-api/pkg/config"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("ai provider not configured")

// HTTPError reports a non-2xx response from the provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

// KeySource resolves the API key per call so it can be rotated through settings.
type KeySource func(ctx context.Context) string

// StaticKey returns a KeySource for a fixed key.
func StaticKey(key string) KeySource {
	return func(context.Context) string { return key }
}

// GeminiClient calls the Gemini generateContent endpoint and decodes JSON answers.
type GeminiClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	keys       KeySource
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGeminiClient builds a client throttled to cfg.RequestsPerSecond.
func NewGeminiClient(cfg config.AIConfig, httpClient *http.Client, keys KeySource, logger *zap.Logger) *GeminiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if keys == nil {
		keys = StaticKey(cfg.APIKey)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		model:      model,
		keys:       keys,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Configured reports whether a key is currently available.
func (c *GeminiClient) Configured(ctx context.Context) bool {
	return strings.TrimSpace(c.keys(ctx)) != ""
}

// GenerateJSON sends the prompt and decodes the model's JSON answer into out.
func (c *GeminiClient) GenerateJSON(ctx context.Context, system, prompt string, out interface{}) error {
	key := strings.TrimSpace(c.keys(ctx))
	if key == "" {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0.2, ResponseMimeType: "application/json"},
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read gemini response: %w", err)
	}
	c.logger.Debug("gemini call", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode gemini envelope: %w", err)
	}
	text := firstText(decoded)
	if text == "" {
		return fmt.Errorf("gemini returned no content")
	}
	if err := json.Unmarshal([]byte(stripFences(text)), out); err != nil {
		return fmt.Errorf("decode gemini answer: %w", err)
	}
	return nil
}

func firstText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s
		}
	}
	return ""
}

// stripFences removes a ```json fence some models wrap around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
