package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

// Registration health states.
const (
	StateHealthy   = "healthy"
	StateUnhealthy = "unhealthy"
	StateProbing   = "probing"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// Checker is the surface the gateway and notifier depend on.
type Checker interface {
	Allow(ctx context.Context, registrationID string) (string, bool)
	RecordResult(ctx context.Context, registrationID string, result *domain.DeliveryResult, err error)
	State(ctx context.Context, registrationID string) Status
}

// Status is the reported health of one registration.
type Status struct {
	RegistrationID string `json:"registration_id"`
	State          string `json:"state"`
	Failures       int    `json:"consecutive_failures"`
	LastFailedAt   string `json:"last_failed_at,omitempty"`
}

// Tracker keeps per-registration delivery health in Redis hashes.
//
// healthy -> unhealthy after FailureThreshold consecutive failures.
// unhealthy -> probing once the cooldown has elapsed; one delivery is let through.
// probing -> healthy on a 2xx, back to unhealthy on anything else.
type Tracker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

func NewTracker(redisClient *redis.Client, logger *slog.Logger) *Tracker {
	return &Tracker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: DefaultFailureThreshold,
		cooldown:         DefaultCooldown,
		now:              time.Now,
	}
}

func healthKey(registrationID string) string {
	return fmt.Sprintf("webhook:health:%s", registrationID)
}

func trialKey(registrationID string) string {
	return fmt.Sprintf("webhook:health:trial:%s", registrationID)
}

// Allow reports whether a delivery to the registration should be attempted.
// Once the cooldown has elapsed exactly one caller wins the trial claim; the
// claim is released when a result is recorded or expires after the cooldown.
// Redis errors are treated as healthy.
func (t *Tracker) Allow(ctx context.Context, registrationID string) (string, bool) {
	key := healthKey(registrationID)

	data, err := t.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StateHealthy, true
	}

	switch data["state"] {
	case StateUnhealthy, StateProbing:
		if data["state"] == StateUnhealthy && !t.cooledDown(data["last_failed_at"]) {
			return StateUnhealthy, false
		}
		won, err := t.redisClient.SetNX(ctx, trialKey(registrationID), t.now().UnixMilli(), t.cooldown).Result()
		if err != nil {
			t.logger.Error("failed to claim webhook trial delivery", "registration_id", registrationID, "error", err)
			return StateProbing, false
		}
		if !won {
			return StateProbing, false
		}
		t.redisClient.HSet(ctx, key, "state", StateProbing)
		t.logger.Info("webhook probing after cooldown", "registration_id", registrationID)
		return StateProbing, true
	default:
		return StateHealthy, true
	}
}

// RecordResult folds one delivery attempt into the registration's health.
// A 2xx result is a success; other statuses and transport errors are failures.
func (t *Tracker) RecordResult(ctx context.Context, registrationID string, result *domain.DeliveryResult, err error) {
	if err == nil && result != nil && result.OK() {
		t.recordSuccess(ctx, registrationID)
		return
	}
	t.recordFailure(ctx, registrationID)
}

func (t *Tracker) recordSuccess(ctx context.Context, registrationID string) {
	key := healthKey(registrationID)

	prev, _ := t.redisClient.HGet(ctx, key, "state").Result()
	t.redisClient.Del(ctx, trialKey(registrationID))

	if err := t.redisClient.HSet(ctx, key, "state", StateHealthy, "failures", 0).Err(); err != nil {
		t.logger.Error("failed to record webhook success", "registration_id", registrationID, "error", err)
		return
	}

	if prev == StateProbing || prev == StateUnhealthy {
		t.logger.Info("webhook recovered", "registration_id", registrationID)
	}
}

func (t *Tracker) recordFailure(ctx context.Context, registrationID string) {
	key := healthKey(registrationID)

	var (
		incr *redis.IntCmd
		prev *redis.StringCmd
	)
	_, err := t.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.HGet(ctx, key, "state")
		incr = pipe.HIncrBy(ctx, key, "failures", 1)
		pipe.HSet(ctx, key, "last_failed_at", t.now().Unix())
		pipe.Del(ctx, trialKey(registrationID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		t.logger.Error("failed to record webhook failure", "registration_id", registrationID, "error", err)
		return
	}

	failures := incr.Val()
	state := prev.Val()

	switch {
	case state == StateProbing:
		t.redisClient.HSet(ctx, key, "state", StateUnhealthy)
		t.logger.Warn("webhook probe failed", "registration_id", registrationID)
	case failures >= int64(t.failureThreshold):
		t.redisClient.HSet(ctx, key, "state", StateUnhealthy)
		if state != StateUnhealthy {
			t.logger.Warn("webhook marked unhealthy",
				"registration_id", registrationID,
				"failures", failures,
				"threshold", t.failureThreshold,
			)
		}
	case state == "":
		t.redisClient.HSet(ctx, key, "state", StateHealthy)
	}
}

// State returns the current health of a registration without changing it.
func (t *Tracker) State(ctx context.Context, registrationID string) Status {
	status := Status{RegistrationID: registrationID, State: StateHealthy}

	data, err := t.redisClient.HGetAll(ctx, healthKey(registrationID)).Result()
	if err != nil || len(data) == 0 {
		return status
	}

	status.Failures, _ = strconv.Atoi(data["failures"])
	if s := data["state"]; s != "" {
		status.State = s
	}
	if status.State == StateUnhealthy && t.cooledDown(data["last_failed_at"]) {
		status.State = StateProbing
	}
	if ts, _ := strconv.ParseInt(data["last_failed_at"], 10, 64); ts > 0 {
		status.LastFailedAt = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}

	return status
}

func (t *Tracker) cooledDown(lastFailedAt string) bool {
	ts, _ := strconv.ParseInt(lastFailedAt, 10, 64)
	return t.now().Unix()-ts >= int64(t.cooldown.Seconds())
}

// Noop treats every registration as healthy. Used when Redis is not configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (string, bool) { return StateHealthy, true }

func (Noop) RecordResult(context.Context, string, *domain.DeliveryResult, error) {}

func (Noop) State(_ context.Context, registrationID string) Status {
	return Status{RegistrationID: registrationID, State: StateHealthy}
}
