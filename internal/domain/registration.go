package domain

import (
	"strings"
	"time"
)

// WebhookRegistration is a tenant-configured delivery target. The delivery
// path only ever reads it.
type WebhookRegistration struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSecret reports whether deliveries to this registration are signed.
func (r *WebhookRegistration) HasSecret() bool {
	return r.Secret != ""
}

// Subscribes reports whether the registration listens for eventType.
// Patterns are exact names, "*", or a "prefix.*" wildcard.
func (r *WebhookRegistration) Subscribes(eventType string) bool {
	for _, pattern := range r.Events {
		if MatchEventType(pattern, eventType) {
			return true
		}
	}
	return false
}

// MatchEventType matches a single subscription pattern against an event type.
func MatchEventType(pattern, eventType string) bool {
	switch {
	case pattern == "*":
		return true
	case pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(eventType, prefix) && len(eventType) > len(prefix)
	}
	return false
}
