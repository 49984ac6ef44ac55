package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

func setupTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connectWS(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect websocket")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) DeliveryEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev DeliveryEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHub_ClientConnectsAndDisconnects(t *testing.T) {
	hub := setupTestHub(t)
	assert.Equal(t, 0, hub.ClientCount())

	conn := connectWS(t, hub, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := setupTestHub(t)

	conn1 := connectWS(t, hub, "")
	conn2 := connectWS(t, hub, "")
	waitForClients(t, hub, 2)

	hub.Broadcast(DeliveryEvent{Kind: KindWebhookTest, Outcome: OutcomeDelivered, EventID: "evt-multi", TenantID: "store-1"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		ev := readEvent(t, conn)
		assert.Equal(t, "evt-multi", ev.EventID)
		assert.Equal(t, KindWebhookTest, ev.Kind)
	}
}

func TestHub_TenantFilter(t *testing.T) {
	hub := setupTestHub(t)

	scoped := connectWS(t, hub, "?tenant=store-2")
	waitForClients(t, hub, 1)

	hub.Broadcast(DeliveryEvent{EventID: "evt-other", TenantID: "store-1"})
	hub.Broadcast(DeliveryEvent{EventID: "evt-mine", TenantID: "store-2"})

	ev := readEvent(t, scoped)
	assert.Equal(t, "evt-mine", ev.EventID, "events for other tenants are filtered out")
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := connectWS(t, hub, "")
	waitForClients(t, hub, 1)

	cancel()
	waitForClients(t, hub, 0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after shutdown")
}

func TestNewDeliveryEvent(t *testing.T) {
	env := &domain.EventEnvelope{ID: "evt-1", Event: "order.created"}
	reg := &domain.WebhookRegistration{ID: "wh-1", TenantID: "store-1", URL: "http://example.com/hook"}

	ev := NewDeliveryEvent(KindNotification, env, reg, &domain.DeliveryResult{Status: 200, DurationMs: 12}, nil)
	assert.Equal(t, OutcomeDelivered, ev.Outcome)
	require.NotNil(t, ev.StatusCode)
	assert.Equal(t, 200, *ev.StatusCode)
	assert.Equal(t, int64(12), ev.DurationMs)
	assert.Equal(t, "wh-1", ev.RegistrationID)
	assert.Equal(t, "order.created", ev.EventType)

	ev = NewDeliveryEvent(KindNotification, env, reg, &domain.DeliveryResult{Status: 503}, nil)
	assert.Equal(t, OutcomeRejected, ev.Outcome)

	ev = NewDeliveryEvent(KindWebhookTest, env, reg, nil, errors.New("connection refused"))
	assert.Equal(t, OutcomeFailed, ev.Outcome)
	assert.Equal(t, "connection refused", ev.Error)
	assert.Nil(t, ev.StatusCode)

	ev = NewDeliveryEvent(KindNotification, env, reg, nil, nil)
	assert.Equal(t, OutcomeSkipped, ev.Outcome)
}
