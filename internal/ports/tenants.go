package ports

import (
	"context"

	"fulfillment-sync-service/internal/domain"
)

// TenantSource supplies the tenants to sync and their credentials,
// read once at the start of each run.
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]*domain.Tenant, error)
	Credentials(ctx context.Context, tenantID int64) (*domain.TenantCredentials, error)
}
