package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

const (
	webhookBackoff    = 500 * time.Millisecond
	webhookMaxBackoff = 30 * time.Second
)

// StatusError is a non-2xx response from the webhook endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// WebhookPublisher POSTs each envelope to an HTTP endpoint, retrying with
// exponential backoff on network errors, 429 and 5xx responses.
type WebhookPublisher struct {
	endpoint   string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// Statistics
	totalRequests uint64
	totalRetries  uint64
	failures      uint64
	mu            sync.RWMutex
}

// WebhookStats represents webhook delivery statistics
type WebhookStats struct {
	TotalRequests uint64 `json:"total_requests"`
	TotalRetries  uint64 `json:"total_retries"`
	Failures      uint64 `json:"failures"`
}

// NewWebhookPublisher creates a webhook publisher. m may be nil.
func NewWebhookPublisher(cfg config.WebhookConfig, logger *slog.Logger, m *metrics.Metrics) (*WebhookPublisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	timeout := cfg.GetTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookPublisher{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    webhookBackoff,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:  logger,
		metrics: m,
	}, nil
}

func (p *WebhookPublisher) Publish(ctx context.Context, msg Message) error {
	p.mu.Lock()
	p.totalRequests++
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.recordRetry()

			wait := min(p.backoff<<(attempt-1), webhookMaxBackoff)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				p.recordFailure()
				return ctx.Err()
			}
		}

		err := p.doRequest(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
		p.logger.Debug("Webhook request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	p.recordFailure()
	return fmt.Errorf("webhook delivery failed: %w", lastErr)
}

func (p *WebhookPublisher) doRequest(ctx context.Context, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "edgetech-gdl90/1.0")
	req.Header.Set("X-GDL90-Topic", string(msg.Topic))
	if msg.Key != "" {
		req.Header.Set("X-GDL90-Key", msg.Key)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// isRetryable reports whether a failed request may succeed if repeated.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (p *WebhookPublisher) recordRetry() {
	p.mu.Lock()
	p.totalRetries++
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.RecordPublishRetry()
	}
}

func (p *WebhookPublisher) recordFailure() {
	p.mu.Lock()
	p.failures++
	p.mu.Unlock()
}

// GetStats returns delivery statistics
func (p *WebhookPublisher) GetStats() WebhookStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return WebhookStats{
		TotalRequests: p.totalRequests,
		TotalRetries:  p.totalRetries,
		Failures:      p.failures,
	}
}

func (p *WebhookPublisher) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
