// Package notify delivers one domain event to every registration of a
// tenant that subscribes to it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/webhook-notifier/internal/delivery"
	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/envelope"
	"github.com/Priya8975/webhook-notifier/internal/health"
	"github.com/Priya8975/webhook-notifier/internal/websocket"
)

const DefaultConcurrency = 16

type SubscriptionFinder interface {
	FindSubscribed(ctx context.Context, tenantID, eventType string) ([]domain.WebhookRegistration, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, url, secret string, env *domain.EventEnvelope, opts ...delivery.Option) (*domain.DeliveryResult, error)
}

type Broadcaster interface {
	Broadcast(event websocket.DeliveryEvent)
}

// Outcome is the result of the single attempt made for one registration.
// Exactly one of Result, Err or Skipped is set.
type Outcome struct {
	RegistrationID string                 `json:"registration_id"`
	URL            string                 `json:"url"`
	Result         *domain.DeliveryResult `json:"result,omitempty"`
	Err            error                  `json:"-"`
	Error          string                 `json:"error,omitempty"`
	Skipped        bool                   `json:"skipped,omitempty"`
	HealthState    string                 `json:"health_state"`
}

// Publication summarizes one Publish call.
type Publication struct {
	EventID   string    `json:"event_id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Outcomes  []Outcome `json:"outcomes"`
}

type Notifier struct {
	finder      SubscriptionFinder
	dispatcher  Deliverer
	health      health.Checker
	hub         Broadcaster
	concurrency int
	logger      *slog.Logger
}

// NewNotifier returns a Notifier. A nil checker treats every registration as
// healthy and a nil hub disables live updates.
func NewNotifier(finder SubscriptionFinder, dispatcher Deliverer, checker health.Checker, hub Broadcaster, concurrency int, logger *slog.Logger) *Notifier {
	if checker == nil {
		checker = health.Noop{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Notifier{
		finder:      finder,
		dispatcher:  dispatcher,
		health:      checker,
		hub:         hub,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Publish builds one envelope for the event and delivers it to every
// subscribed registration in parallel. A failing receiver never stops the
// others; per-registration failures are reported in the outcomes, not as
// the returned error.
func (n *Notifier) Publish(ctx context.Context, tenantID, eventType, actor string, payload any) (*Publication, error) {
	env, err := envelope.New(eventType, tenantID, actor, payload)
	if err != nil {
		return nil, fmt.Errorf("building envelope: %w", err)
	}

	regs, err := n.finder.FindSubscribed(ctx, tenantID, eventType)
	if err != nil {
		return nil, fmt.Errorf("finding subscribed registrations: %w", err)
	}

	pub := &Publication{
		EventID:   env.ID,
		Event:     env.Event,
		Timestamp: env.Timestamp,
		Outcomes:  make([]Outcome, len(regs)),
	}

	if len(regs) == 0 {
		n.logger.Info("no subscribed registrations", "tenant_id", tenantID, "event_type", eventType, "event_id", env.ID)
		return pub, nil
	}

	var g errgroup.Group
	g.SetLimit(n.concurrency)

	for i := range regs {
		reg := &regs[i]
		g.Go(func() error {
			pub.Outcomes[i] = n.deliverOne(ctx, env, reg)
			return nil
		})
	}
	g.Wait()

	n.logger.Info("event published",
		"tenant_id", tenantID,
		"event_type", eventType,
		"event_id", env.ID,
		"registrations", len(regs),
	)
	return pub, nil
}

func (n *Notifier) deliverOne(ctx context.Context, env *domain.EventEnvelope, reg *domain.WebhookRegistration) Outcome {
	out := Outcome{RegistrationID: reg.ID, URL: reg.URL}

	state, allowed := n.health.Allow(ctx, reg.ID)
	out.HealthState = state
	if !allowed {
		out.Skipped = true
		n.logger.Warn("skipping unhealthy webhook", "registration_id", reg.ID, "event_id", env.ID)
		n.broadcast(env, reg, nil, nil)
		return out
	}

	result, err := n.dispatcher.Deliver(ctx, reg.URL, reg.Secret, env)
	n.health.RecordResult(ctx, reg.ID, result, err)
	n.broadcast(env, reg, result, err)

	if err != nil {
		out.Err = err
		out.Error = err.Error()
		return out
	}
	out.Result = result
	return out
}

func (n *Notifier) broadcast(env *domain.EventEnvelope, reg *domain.WebhookRegistration, result *domain.DeliveryResult, err error) {
	if n.hub == nil {
		return
	}
	n.hub.Broadcast(websocket.NewDeliveryEvent(websocket.KindNotification, env, reg, result, err))
}
