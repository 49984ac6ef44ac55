package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

// RecordActivity appends an audit entry and fills in its id and timestamp.
func (s *PostgresStore) RecordActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO activity_logs (tenant_id, actor, action, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, entry.TenantID, entry.Actor, entry.Action, entry.Payload).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting activity log: %w", err)
	}
	return nil
}
