// Package delivery performs a single bounded HTTP delivery of a signed event
// envelope and normalizes the receiver's answer into a DeliveryResult.
//
// Receiver-level rejections (any status code) are data, not errors. Only
// transport failures (DNS, connection, timeout) are returned as errors, as a
// *TransportError. Nothing is retried here.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/envelope"
	"github.com/Priya8975/webhook-notifier/internal/metrics"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxResponseChars = 4096
)

// Config holds the transport defaults for a Dispatcher.
type Config struct {
	Timeout          time.Duration
	UserAgent        string
	MaxResponseChars int
}

// DefaultConfig returns the stock transport settings.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		UserAgent:        envelope.DefaultUserAgent,
		MaxResponseChars: DefaultMaxResponseChars,
	}
}

// TransportError is returned when no HTTP response was obtained.
type TransportError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("delivery to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Option adjusts a single Deliver call.
type Option func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the configured timeout for one delivery.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Dispatcher sends envelopes to receiver endpoints. It keeps no state between
// calls and is safe for concurrent use.
type Dispatcher struct {
	httpClient *http.Client
	builder    *envelope.Builder
	cfg        Config
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher from cfg, filling unset fields with defaults.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxResponseChars <= 0 {
		cfg.MaxResponseChars = def.MaxResponseChars
	}

	return &Dispatcher{
		// Deadlines come from the per-call context so WithTimeout can override them.
		httpClient: &http.Client{},
		builder:    envelope.NewBuilder(cfg.UserAgent),
		cfg:        cfg,
		logger:     logger,
	}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Deliver POSTs env to url, signed with secret when one is configured.
func (d *Dispatcher) Deliver(ctx context.Context, url, secret string, env *domain.EventEnvelope, opts ...Option) (*domain.DeliveryResult, error) {
	co := callOptions{timeout: d.cfg.Timeout}
	for _, opt := range opts {
		opt(&co)
	}

	out, err := d.builder.Build(env, secret)
	if err != nil {
		return nil, fmt.Errorf("building envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, co.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(out.Body))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header = out.Headers

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, d.transportFailure(env, url, start, err)
	}
	defer resp.Body.Close()

	data, err := d.readBody(resp)
	if err != nil {
		return nil, d.transportFailure(env, url, start, err)
	}

	elapsed := time.Since(start)
	result := &domain.DeliveryResult{
		Status:     resp.StatusCode,
		Data:       data,
		Headers:    resp.Header.Clone(),
		DurationMs: elapsed.Milliseconds(),
	}

	metrics.ObserveDelivery(env.Event, metrics.StatusOutcome(resp.StatusCode), elapsed)
	d.logger.Info("webhook delivered",
		"event_id", env.ID,
		"event_type", env.Event,
		"url", url,
		"signed", out.Signed,
		"status_code", resp.StatusCode,
		"response_time_ms", elapsed.Milliseconds(),
	)

	return result, nil
}

func (d *Dispatcher) transportFailure(env *domain.EventEnvelope, url string, start time.Time, err error) error {
	elapsed := time.Since(start)
	terr := &TransportError{URL: url, Timeout: isTimeout(err), Err: err}

	outcome := metrics.OutcomeTransport
	if terr.Timeout {
		outcome = metrics.OutcomeTimeout
	}
	metrics.ObserveDelivery(env.Event, outcome, elapsed)

	d.logger.Warn("webhook delivery failed",
		"event_id", env.ID,
		"event_type", env.Event,
		"url", url,
		"timeout", terr.Timeout,
		"error", err,
		"response_time_ms", elapsed.Milliseconds(),
	)
	return terr
}

// readBody captures at most MaxResponseChars characters of the response.
// A complete body that parses as JSON is reduced to its compact serialized
// form first, whatever Content-Type the receiver declared.
func (d *Dispatcher) readBody(resp *http.Response) (string, error) {
	limit := int64(d.cfg.MaxResponseChars) * utf8.UTFMax
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	complete := int64(len(raw)) <= limit
	if !complete {
		raw = raw[:limit]
	}

	if complete && json.Valid(raw) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			raw = buf.Bytes()
		}
	}

	return truncateChars(string(raw), d.cfg.MaxResponseChars), nil
}

// truncateChars cuts s after max characters without splitting a rune.
func truncateChars(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
