package domain

import (
	"encoding/json"
	"time"
)

// TestEventType is the event tag used for synthetic test deliveries.
const TestEventType = "test"

// EventEnvelope is the canonical event structure sent to registered endpoints.
// ID is reused verbatim as the delivery idempotency key.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	TenantID  string          `json:"tenantId"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}
