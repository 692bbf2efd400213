package domain

import "time"

// A billed customer whose fulfillment data is tracked separately.
// Every other entity carries a TenantID; no state is ever shared
// across tenants.
type Tenant struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Per-tenant credentials and cadence read once at the start of a run.
type TenantCredentials struct {
	TenantID     int64
	APIToken     string
	SyncInterval time.Duration
}
