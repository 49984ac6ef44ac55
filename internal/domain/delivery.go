package domain

import (
	"net/http"
	"time"
)

// DeliveryResult is the normalized outcome of a completed HTTP exchange.
// Any status code the receiver returns, including 4xx/5xx, is a result.
type DeliveryResult struct {
	Status     int         `json:"status"`
	Data       string      `json:"data"`
	Headers    http.Header `json:"headers"`
	DurationMs int64       `json:"duration_ms"`
}

// OK reports whether the receiver answered with a 2xx status.
func (r *DeliveryResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Activity actions recorded by the test-delivery gateway.
const (
	ActionWebhookTest       = "WEBHOOK_TEST"
	ActionWebhookTestFailed = "WEBHOOK_TEST_FAILED"
)

// ActivityEntry is an audit record for an operator-triggered action.
type ActivityEntry struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
