// Package envelope assembles the canonical wire form of an event and the
// transport headers derived from it.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/signing"
	"github.com/google/uuid"
)

// Transport headers set on every delivery.
const (
	HeaderContentType    = "Content-Type"
	HeaderUserAgent      = "User-Agent"
	HeaderEvent          = "X-Event"
	HeaderTimestamp      = "X-Timestamp"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderSignature      = "X-Signature"
)

// DefaultUserAgent identifies the sending system to receivers.
const DefaultUserAgent = "webhook-notifier/1.0"

// TimestampFormat is ISO-8601 UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalidPayload = errors.New("envelope payload is not valid JSON")

// Outbound is a finalized delivery: Body is what gets signed and what gets sent.
type Outbound struct {
	Body    []byte
	Headers http.Header
	Signed  bool
}

// Builder serializes envelopes and derives their headers.
type Builder struct {
	userAgent string
	now       func() time.Time
}

// NewBuilder returns a Builder that stamps requests with userAgent.
func NewBuilder(userAgent string) *Builder {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Builder{userAgent: userAgent, now: time.Now}
}

// Build serializes env exactly once and signs those bytes when secret is set.
// An empty secret yields an unsigned delivery with no signature header.
func (b *Builder) Build(env *domain.EventEnvelope, secret string) (*Outbound, error) {
	if env == nil {
		return nil, fmt.Errorf("building envelope: nil envelope")
	}
	if len(env.Payload) > 0 && !json.Valid(env.Payload) {
		return nil, ErrInvalidPayload
	}

	wire := *env
	if wire.Timestamp.IsZero() {
		wire.Timestamp = b.now()
	}
	wire.Timestamp = wire.Timestamp.UTC()

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}

	eventType := wire.Event
	if eventType == "" {
		eventType = "unknown"
	}

	headers := make(http.Header)
	headers.Set(HeaderContentType, "application/json")
	headers.Set(HeaderUserAgent, b.userAgent)
	headers.Set(HeaderEvent, eventType)
	headers.Set(HeaderTimestamp, wire.Timestamp.Format(TimestampFormat))
	// Set directly so an empty id still produces an (empty) header.
	headers[HeaderIdempotencyKey] = []string{wire.ID}

	out := &Outbound{Body: body, Headers: headers}
	if secret != "" {
		headers.Set(HeaderSignature, signing.SignHeader(secret, body))
		out.Signed = true
	}

	return out, nil
}

// New creates an envelope with a fresh id and the current time. A payload that
// is already []byte or json.RawMessage is used as-is; anything else is
// serialized here, once, at the boundary of the subsystem.
func New(eventType, tenantID, actor string, payload any) (*domain.EventEnvelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &domain.EventEnvelope{
		ID:        uuid.NewString(),
		Event:     eventType,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Payload:   raw,
	}, nil
}

// Test builds the synthetic envelope used to probe a registration.
func Test(tenantID, actor string) *domain.EventEnvelope {
	return &domain.EventEnvelope{
		ID:        uuid.NewString(),
		Event:     domain.TestEventType,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Payload:   json.RawMessage(`{"test":true}`),
	}
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(p) > 0 && !json.Valid(p) {
			return nil, ErrInvalidPayload
		}
		return p, nil
	case []byte:
		if len(p) > 0 && !json.Valid(p) {
			return nil, ErrInvalidPayload
		}
		return json.RawMessage(p), nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshaling payload: %w", err)
		}
		return raw, nil
	}
}
