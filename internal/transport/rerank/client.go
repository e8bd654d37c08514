// Package rerank is a client for Cohere-compatible /v2/rerank endpoints.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/metrics"
)

const (
	defaultBaseURL = "https://api.cohere.com"
	defaultTimeout = 10 * time.Second
	rerankPath     = "/v2/rerank"

	// maxErrorBody caps how much of an error response ends up in the error message.
	maxErrorBody = 512
)

// Config holds the rerank provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client calls the rerank API over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
}

// NewClient creates a rerank client.
func NewClient(cfg *Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		logger:  logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements domain.Reranker.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankedItem, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rerankPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w: %w", err, domain.ErrRerankService)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.recordError("transport")
		return nil, fmt.Errorf("rerank request: %w: %w", err, domain.ErrRerankService)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.recordError(fmt.Sprintf("http_%d", resp.StatusCode))
		return nil, parseAPIError(resp)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.recordError("decode")
		return nil, fmt.Errorf("decode rerank response: %w: %w", err, domain.ErrRerankService)
	}

	items := make([]domain.RerankedItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			c.recordError("bad_index")
			return nil, fmt.Errorf("rerank result index %d out of range [0,%d): %w",
				r.Index, len(documents), domain.ErrRerankService)
		}
		items = append(items, domain.RerankedItem{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}

	metrics.RerankRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.RerankRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	c.logger.Debug("rerank completed",
		zap.Int("documents", len(documents)),
		zap.Int("results", len(items)),
		zap.Duration("duration", duration))

	return items, nil
}

func (c *Client) recordError(kind string) {
	metrics.RerankRequestsTotal.WithLabelValues(c.model, "error").Inc()
	metrics.RerankErrorsTotal.WithLabelValues(c.model, kind).Inc()
}

// parseAPIError turns a non-200 response into an ErrRerankService chain.
// 429 additionally wraps ErrRateLimited.
func parseAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := extractMessage(raw)

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rerank API error %d: %s: %w: %w",
			resp.StatusCode, detail, domain.ErrRateLimited, domain.ErrRerankService)
	}
	return fmt.Errorf("rerank API error %d: %s: %w", resp.StatusCode, detail, domain.ErrRerankService)
}

// extractMessage reads "message" (Cohere) or "detail" (FastAPI-style proxies) from an error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return strings.TrimSpace(string(body))
}
