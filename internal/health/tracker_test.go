package health

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func setupTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	tr, clock, _ := setupTestTrackerWithRedis(t)
	return tr, clock
}

func setupTestTrackerWithRedis(t *testing.T) (*Tracker, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	tr := NewTracker(client, logger)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tr.now = clock.Now
	return tr, clock, mr
}

var (
	res500 = &domain.DeliveryResult{Status: 500}
	res200 = &domain.DeliveryResult{Status: 200}
)

func fail(t *testing.T, tr *Tracker, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		tr.RecordResult(context.Background(), id, res500, nil)
	}
}

func TestTracker_InitialState(t *testing.T) {
	tr, _ := setupTestTracker(t)

	state, allowed := tr.Allow(context.Background(), "wh-1")
	if state != StateHealthy || !allowed {
		t.Errorf("new registration: got (%q, %v), want (%q, true)", state, allowed, StateHealthy)
	}

	st := tr.State(context.Background(), "wh-1")
	if st.State != StateHealthy || st.Failures != 0 {
		t.Errorf("unexpected default status %+v", st)
	}
}

func TestTracker_UnhealthyAfterThreshold(t *testing.T) {
	tr, _ := setupTestTracker(t)
	fail(t, tr, "wh-1", DefaultFailureThreshold)

	state, allowed := tr.Allow(context.Background(), "wh-1")
	if state != StateUnhealthy {
		t.Errorf("expected %q, got %q", StateUnhealthy, state)
	}
	if allowed {
		t.Error("unhealthy registration should not be allowed")
	}
}

func TestTracker_TransportErrorsCountAsFailures(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()

	for i := 0; i < DefaultFailureThreshold; i++ {
		tr.RecordResult(ctx, "wh-1", nil, errors.New("connection refused"))
	}

	if _, allowed := tr.Allow(ctx, "wh-1"); allowed {
		t.Error("transport failures should mark the registration unhealthy")
	}
}

func TestTracker_StaysHealthyBelowThreshold(t *testing.T) {
	tr, _ := setupTestTracker(t)
	fail(t, tr, "wh-1", DefaultFailureThreshold-1)

	state, allowed := tr.Allow(context.Background(), "wh-1")
	if state != StateHealthy || !allowed {
		t.Errorf("got (%q, %v), want healthy and allowed", state, allowed)
	}
	if got := tr.State(context.Background(), "wh-1").Failures; got != DefaultFailureThreshold-1 {
		t.Errorf("expected %d failures, got %d", DefaultFailureThreshold-1, got)
	}
}

func TestTracker_SuccessResets(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", 4)
	tr.RecordResult(ctx, "wh-1", res200, nil)

	st := tr.State(ctx, "wh-1")
	if st.State != StateHealthy {
		t.Errorf("expected %q after success, got %q", StateHealthy, st.State)
	}
	if st.Failures != 0 {
		t.Errorf("expected 0 failures after success, got %d", st.Failures)
	}
	if st.LastFailedAt == "" {
		t.Error("last failure time should be kept for reporting")
	}
}

func TestTracker_ProbesAfterCooldown(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	if _, allowed := tr.Allow(ctx, "wh-1"); allowed {
		t.Fatal("should be blocked before the cooldown elapses")
	}

	clock.t = clock.t.Add(DefaultCooldown + time.Second)

	if got := tr.State(ctx, "wh-1").State; got != StateProbing {
		t.Errorf("State after cooldown: expected %q, got %q", StateProbing, got)
	}

	state, allowed := tr.Allow(ctx, "wh-1")
	if state != StateProbing || !allowed {
		t.Errorf("got (%q, %v), want (%q, true)", state, allowed, StateProbing)
	}
}

func TestTracker_SingleAdmissionAfterCooldown(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown + time.Second)

	admitted := 0
	for i := 0; i < 5; i++ {
		state, allowed := tr.Allow(ctx, "wh-1")
		if state != StateProbing {
			t.Errorf("call %d: expected %q, got %q", i+1, StateProbing, state)
		}
		if allowed {
			admitted++
		}
	}
	if admitted != 1 {
		t.Errorf("expected exactly one admission while the first is outstanding, got %d", admitted)
	}
}

func TestTracker_SingleAdmissionUnderConcurrency(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown + time.Second)

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, allowed := tr.Allow(ctx, "wh-1"); allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("expected exactly one concurrent caller admitted, got %d", got)
	}
}

func TestTracker_TrialClaimExpires(t *testing.T) {
	tr, clock, mr := setupTestTrackerWithRedis(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown)

	if _, allowed := tr.Allow(ctx, "wh-1"); !allowed {
		t.Fatal("first caller after cooldown should be admitted")
	}
	if _, allowed := tr.Allow(ctx, "wh-1"); allowed {
		t.Fatal("second caller should wait for the outstanding trial delivery")
	}

	// The trial delivery never reported back.
	mr.FastForward(DefaultCooldown + time.Second)

	if _, allowed := tr.Allow(ctx, "wh-1"); !allowed {
		t.Error("an abandoned claim should expire and admit a new trial delivery")
	}
}

func TestTracker_NewTrialAfterFailedTrial(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown)
	tr.Allow(ctx, "wh-1")
	tr.RecordResult(ctx, "wh-1", res500, nil)

	clock.t = clock.t.Add(DefaultCooldown)

	state, allowed := tr.Allow(ctx, "wh-1")
	if state != StateProbing || !allowed {
		t.Errorf("got (%q, %v), want a fresh trial after the next cooldown", state, allowed)
	}
}

func TestTracker_ProbeSuccessRecovers(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown)
	tr.Allow(ctx, "wh-1")

	tr.RecordResult(ctx, "wh-1", res200, nil)

	if got := tr.State(ctx, "wh-1").State; got != StateHealthy {
		t.Errorf("expected %q after successful probe, got %q", StateHealthy, got)
	}
}

func TestTracker_ProbeFailureReopens(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	fail(t, tr, "wh-1", DefaultFailureThreshold)
	clock.t = clock.t.Add(DefaultCooldown)
	tr.Allow(ctx, "wh-1")

	tr.RecordResult(ctx, "wh-1", &domain.DeliveryResult{Status: 404}, nil)

	state, allowed := tr.Allow(ctx, "wh-1")
	if state != StateUnhealthy || allowed {
		t.Errorf("got (%q, %v), want (%q, false) after failed probe", state, allowed, StateUnhealthy)
	}
}

func TestTracker_IsolationBetweenRegistrations(t *testing.T) {
	tr, _ := setupTestTracker(t)
	fail(t, tr, "wh-1", DefaultFailureThreshold)

	state, allowed := tr.Allow(context.Background(), "wh-2")
	if state != StateHealthy || !allowed {
		t.Errorf("wh-2 should be unaffected, got (%q, %v)", state, allowed)
	}
}

func TestNoop(t *testing.T) {
	var c Checker = Noop{}
	ctx := context.Background()

	c.RecordResult(ctx, "wh-1", nil, errors.New("boom"))
	if _, allowed := c.Allow(ctx, "wh-1"); !allowed {
		t.Error("noop checker should always allow")
	}
	if st := c.State(ctx, "wh-1"); st.State != StateHealthy || st.RegistrationID != "wh-1" {
		t.Errorf("unexpected status %+v", st)
	}
}
