// Package gateway exposes the "send test event" operation for a tenant's
// webhook registration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Priya8975/webhook-notifier/internal/delivery"
	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/envelope"
	"github.com/Priya8975/webhook-notifier/internal/health"
	"github.com/Priya8975/webhook-notifier/internal/ratelimit"
	"github.com/Priya8975/webhook-notifier/internal/websocket"
)

var (
	ErrRegistrationNotFound = errors.New("webhook registration not found")
	ErrRateLimited          = errors.New("too many test deliveries")
)

type RegistrationLookup interface {
	GetRegistration(ctx context.Context, tenantID, id string) (*domain.WebhookRegistration, error)
}

type ActivityRecorder interface {
	RecordActivity(ctx context.Context, entry *domain.ActivityEntry) error
}

type Deliverer interface {
	Deliver(ctx context.Context, url, secret string, env *domain.EventEnvelope, opts ...delivery.Option) (*domain.DeliveryResult, error)
}

type Broadcaster interface {
	Broadcast(event websocket.DeliveryEvent)
}

// Gateway wires registration lookup, rate limiting and delivery together.
// Health and Hub are optional.
type Gateway struct {
	Registrations RegistrationLookup
	Activity      ActivityRecorder
	Dispatcher    Deliverer
	Limiter       ratelimit.Limiter
	Health        health.Checker
	Hub           Broadcaster

	// TestRateLimit caps test sends per registration per second. Zero disables it.
	TestRateLimit int
	Logger        *slog.Logger
}

// SendTest delivers a synthetic "test" envelope to the registration and
// returns whatever the receiver answered. Inactive registrations can still
// be tested. Transport failures come back wrapped as *delivery.TransportError.
func (g *Gateway) SendTest(ctx context.Context, tenantID, registrationID, actor string) (*domain.DeliveryResult, error) {
	reg, err := g.Registrations.GetRegistration(ctx, tenantID, registrationID)
	if err != nil {
		return nil, fmt.Errorf("loading webhook registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	if g.Limiter != nil && !g.Limiter.Allow(ctx, rateKey(tenantID, registrationID), g.TestRateLimit) {
		return nil, ErrRateLimited
	}

	env := envelope.Test(tenantID, actor)
	result, err := g.Dispatcher.Deliver(ctx, reg.URL, reg.Secret, env)

	if g.Health != nil {
		g.Health.RecordResult(ctx, reg.ID, result, err)
	}
	g.recordActivity(ctx, reg, env, actor, result, err)
	if g.Hub != nil {
		g.Hub.Broadcast(websocket.NewDeliveryEvent(websocket.KindWebhookTest, env, reg, result, err))
	}

	if err != nil {
		return nil, fmt.Errorf("sending test event: %w", err)
	}

	g.Logger.Info("webhook test delivered",
		"registration_id", reg.ID,
		"tenant_id", tenantID,
		"event_id", env.ID,
		"status_code", result.Status,
	)
	return result, nil
}

func (g *Gateway) recordActivity(ctx context.Context, reg *domain.WebhookRegistration, env *domain.EventEnvelope, actor string, result *domain.DeliveryResult, deliverErr error) {
	entry := &domain.ActivityEntry{
		TenantID: reg.TenantID,
		Actor:    actor,
		Payload: map[string]any{
			"registration_id": reg.ID,
			"event_id":        env.ID,
			"signed":          reg.HasSecret(),
		},
	}
	if deliverErr != nil {
		entry.Action = domain.ActionWebhookTestFailed
		entry.Payload["error"] = deliverErr.Error()
	} else {
		entry.Action = domain.ActionWebhookTest
		entry.Payload["status"] = result.Status
		entry.Payload["duration_ms"] = result.DurationMs
	}

	// The receiver already saw the delivery, so an audit failure does not
	// change the outcome reported to the caller.
	if err := g.Activity.RecordActivity(ctx, entry); err != nil {
		g.Logger.Error("failed to record webhook test activity",
			"registration_id", reg.ID,
			"action", entry.Action,
			"error", err,
		)
	}
}

func rateKey(tenantID, registrationID string) string {
	return "test:" + tenantID + ":" + registrationID
}
