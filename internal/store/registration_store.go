package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

const registrationColumns = `id::text, tenant_id, name, url, secret, events, is_active, created_at, updated_at`

func scanRegistration(row pgx.Row) (*domain.WebhookRegistration, error) {
	var reg domain.WebhookRegistration
	err := row.Scan(
		&reg.ID, &reg.TenantID, &reg.Name, &reg.URL, &reg.Secret,
		&reg.Events, &reg.IsActive, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetRegistration returns nil, nil when the registration does not exist or
// belongs to another tenant.
func (s *PostgresStore) GetRegistration(ctx context.Context, tenantID, id string) (*domain.WebhookRegistration, error) {
	reg, err := scanRegistration(s.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM webhook_registrations
		WHERE tenant_id = $1 AND id::text = $2
	`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying webhook registration: %w", err)
	}
	return reg, nil
}

// FindSubscribed returns the tenant's active registrations whose event
// patterns match eventType.
func (s *PostgresStore) FindSubscribed(ctx context.Context, tenantID, eventType string) ([]domain.WebhookRegistration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+registrationColumns+`
		FROM webhook_registrations
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying webhook registrations: %w", err)
	}
	defer rows.Close()

	regs := []domain.WebhookRegistration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook registration: %w", err)
		}
		if reg.Subscribes(eventType) {
			regs = append(regs, *reg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook registrations: %w", err)
	}

	return regs, nil
}
