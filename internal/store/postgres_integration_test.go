//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.RunMigrations(ctx, "../../migrations"))
	return s
}

func insertRegistration(t *testing.T, s *PostgresStore, tenantID string, events []string, active bool) string {
	t.Helper()
	var id string
	err := s.pool.QueryRow(context.Background(), `
		INSERT INTO webhook_registrations (tenant_id, name, url, secret, events, is_active)
		VALUES ($1, 'it', 'http://localhost:9090/webhook/success', 'secret', $2, $3)
		RETURNING id::text
	`, tenantID, events, active).Scan(&id)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DELETE FROM webhook_registrations WHERE id::text = $1", id)
	})
	return id
}

func TestPostgresStore_Registrations(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	tenant := "it-" + t.Name()

	id := insertRegistration(t, s, tenant, []string{"order.*"}, true)
	insertRegistration(t, s, tenant, []string{"order.created"}, false)

	reg, err := s.GetRegistration(ctx, tenant, id)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, []string{"order.*"}, reg.Events)
	assert.Equal(t, "secret", reg.Secret)

	reg, err = s.GetRegistration(ctx, "other-tenant", id)
	require.NoError(t, err)
	assert.Nil(t, reg)

	regs, err := s.FindSubscribed(ctx, tenant, "order.created")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, id, regs[0].ID)
}

func TestPostgresStore_RecordActivity(t *testing.T) {
	s := setupPostgres(t)

	entry := &domain.ActivityEntry{
		TenantID: "it-activity",
		Actor:    "user-1",
		Action:   domain.ActionWebhookTest,
		Payload:  map[string]any{"webhook_id": "wh-1", "status": 200},
	}
	require.NoError(t, s.RecordActivity(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestPostgresStore_MigrationsIdempotent(t *testing.T) {
	s := setupPostgres(t)
	assert.NoError(t, s.RunMigrations(context.Background(), "../../migrations"))
}
