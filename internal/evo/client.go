// Package evo is a client for the EVO gym management REST API.
//
// EVO responses are loosely structured: list payloads arrive either bare or
// wrapped in an envelope under varying keys, and field names vary by tenant
// and endpoint version. The helpers in fields.go deal with that; the client
// itself only handles auth, retries and decoding.
package evo

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/metrics"
)

const (
	maxRetries   = 5
	initialDelay = 1 * time.Second
	maxDelay     = 8 * time.Second
)

// Client is an EVO API client
type Client struct {
	httpClient *http.Client
	baseURLV1  string
	baseURLV2  string
	authHeader string
	pageSize   int
	logger     *slog.Logger
}

// NewClient creates a new EVO API client using Basic auth credentials
func NewClient(cfg *config.Config) *Client {
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.EVOUser + ":" + cfg.EVOToken))
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURLV1:  cfg.EVOBaseURLV1,
		baseURLV2:  cfg.EVOBaseURLV2,
		authHeader: "Basic " + auth,
		pageSize:   cfg.EVOPageSize,
		logger:     slog.Default(),
	}
}

// HTTPError is returned for non-retryable HTTP failures
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("evo api returned status %d: %s", e.StatusCode, e.Body)
}

// getJSON performs a GET with retries and exponential backoff on 429 and 5xx.
// A 204 yields an empty body.
func (c *Client) getJSON(ctx context.Context, operation, baseURL, path string, params url.Values) ([]byte, error) {
	reqURL := baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying request", "operation", operation, "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			lastErr = err
			c.logger.Error("request failed", "operation", operation, "path", path, "error", err, "attempt", attempt)
			continue
		}

		statusStr := strconv.Itoa(resp.StatusCode)
		metrics.EVOAPIRequestsTotal.WithLabelValues(operation, statusStr).Inc()
		metrics.EVOAPIRequestDuration.WithLabelValues(operation, statusStr).Observe(duration.Seconds())

		c.logger.Debug("evo_api_request", "operation", operation, "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", err)
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusNoContent:
			resp.Body.Close()
			return nil, nil
		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("evo api returned status %d", resp.StatusCode)
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
			resp.Body.Close()
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		}
	}

	return nil, fmt.Errorf("max retries exceeded for %s: %w", operation, lastErr)
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
