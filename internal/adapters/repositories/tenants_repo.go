package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment-sync-service/internal/domain"
)

// SQLTenantSource implements the ports.TenantSource boundary over the
// tenants table.
type SQLTenantSource struct {
	store *SQLStore
}

func NewSQLTenantSource(store *SQLStore) *SQLTenantSource {
	return &SQLTenantSource{store: store}
}

// ActiveTenants returns every tenant flagged active, ordered by id.
func (t *SQLTenantSource) ActiveTenants(ctx context.Context) ([]*domain.Tenant, error) {
	query := `SELECT id, name, active, created_at FROM tenants WHERE active = 1 ORDER BY id;`
	rows, err := t.store.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("active tenants: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		var tn domain.Tenant
		if err := rows.Scan(&tn.ID, &tn.Name, &tn.Active, &tn.CreatedAt); err != nil {
			return nil, fmt.Errorf("active tenants: scan: %w", err)
		}
		out = append(out, &tn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active tenants: iterate: %w", err)
	}
	return out, nil
}

// Credentials loads one tenant's API token and sync cadence. A
// missing or empty token is a fatal per-tenant error; the caller
// aborts only that tenant's run.
func (t *SQLTenantSource) Credentials(ctx context.Context, tenantID int64) (*domain.TenantCredentials, error) {
	query := t.store.bind(`SELECT api_token, sync_interval_minutes FROM tenants WHERE id = ?;`)

	var token string
	var intervalMinutes int
	err := t.store.DB.QueryRowContext(ctx, query, tenantID).Scan(&token, &intervalMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credentials: tenant %d not found", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: tenant %d: %w", tenantID, err)
	}
	if token == "" {
		return nil, fmt.Errorf("credentials: tenant %d has no api token", tenantID)
	}

	return &domain.TenantCredentials{
		TenantID:     tenantID,
		APIToken:     token,
		SyncInterval: time.Duration(intervalMinutes) * time.Minute,
	}, nil
}
