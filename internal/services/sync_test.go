package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

type fakeTenantSource struct {
	tenants []*domain.Tenant
	creds   map[int64]*domain.TenantCredentials
}

func (f *fakeTenantSource) ActiveTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return f.tenants, nil
}

func (f *fakeTenantSource) Credentials(ctx context.Context, tenantID int64) (*domain.TenantCredentials, error) {
	creds, ok := f.creds[tenantID]
	if !ok {
		return nil, errors.New("no credentials")
	}
	return creds, nil
}

func TestSyncerRunFullPass(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	tenants := &fakeTenantSource{
		tenants: []*domain.Tenant{{ID: 1, Name: "Acme", Active: true}},
		creds: map[int64]*domain.TenantCredentials{
			1: {TenantID: 1, APIToken: "tok"},
		},
	}

	provider := &fakeProvider{
		orders: func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error) {
			return ports.Page[ports.UpstreamOrder]{
				Records: []ports.UpstreamOrder{{
					ID:        "O-1",
					CreatedAt: now.AddDate(0, 0, -2),
					Shipments: []ports.UpstreamShipment{{ID: 5001, TrackingNumber: "1Z999", CreatedAt: now.AddDate(0, 0, -2)}},
				}},
			}, nil
		},
		transactions: func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamTransaction], error) {
			return ports.Page[ports.UpstreamTransaction]{
				Records: []ports.UpstreamTransaction{{
					ID:            "T-1",
					ReferenceType: domain.RefShipment,
					ReferenceID:   "5001",
					FeeType:       "Shipping",
					Amount:        12.5,
					TransactedAt:  now.AddDate(0, 0, -1),
				}},
			}, nil
		},
	}

	syncer := NewSyncer(
		store,
		tenants,
		func(creds *domain.TenantCredentials) ports.UpstreamProvider { return provider },
		newFakeWatermarks(),
		DefaultFeeRoutes(),
		SyncerConfig{RequestDelay: time.Nanosecond},
	)

	report := syncer.Run(context.Background(), domain.CreationWindow(30, now))

	if report.RunID == "" {
		t.Fatal("run id missing")
	}
	if len(report.Tenants) != 1 {
		t.Fatalf("tenant reports = %d, want 1", len(report.Tenants))
	}
	tr := report.Tenants[0]
	if tr.Failed() {
		t.Fatalf("tenant run failed: %v", tr.Errors)
	}
	if tr.Orders.Upserted != 1 || tr.Shipments.Upserted != 1 {
		t.Fatalf("upserted orders=%d shipments=%d, want 1/1", tr.Orders.Upserted, tr.Shipments.Upserted)
	}
	if tr.TransactionsFound != 1 || tr.TransactionsAttributed != 1 {
		t.Fatalf("transactions found=%d attributed=%d, want 1/1",
			tr.TransactionsFound, tr.TransactionsAttributed)
	}

	// The transaction landed on tenant 1 via its shipment.
	for _, tx := range store.transactions {
		if tx.UpstreamID == "T-1" {
			if !tx.Attributed() || *tx.ClientID != 1 {
				t.Fatalf("client = %v, want 1", tx.ClientID)
			}
		}
	}

	cp, err := store.Checkpoint(context.Background(), 1, domain.WindowCreated)
	if err != nil || cp == nil {
		t.Fatalf("checkpoint missing: %v", err)
	}
}

func TestSyncerIsolatesTenantFailures(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	tenants := &fakeTenantSource{
		tenants: []*domain.Tenant{
			{ID: 1, Name: "Acme", Active: true},
			{ID: 2, Name: "NoToken", Active: true},
		},
		creds: map[int64]*domain.TenantCredentials{
			1: {TenantID: 1, APIToken: "tok"},
		},
	}

	syncer := NewSyncer(
		store,
		tenants,
		func(creds *domain.TenantCredentials) ports.UpstreamProvider { return &fakeProvider{} },
		newFakeWatermarks(),
		DefaultFeeRoutes(),
		SyncerConfig{RequestDelay: time.Nanosecond},
	)

	report := syncer.Run(context.Background(), domain.CreationWindow(30, now))

	if len(report.Tenants) != 2 {
		t.Fatalf("tenant reports = %d, want 2", len(report.Tenants))
	}
	if report.Tenants[0].TenantID != 1 || report.Tenants[1].TenantID != 2 {
		t.Fatal("reports should be ordered by tenant id")
	}
	if report.Tenants[0].Failed() {
		t.Fatalf("healthy tenant failed: %v", report.Tenants[0].Errors)
	}
	if !report.Tenants[1].Failed() {
		t.Fatal("tenant without credentials should fail")
	}
	if !report.Failed() {
		t.Fatal("run should report failure when any tenant failed")
	}
}

func TestSyncerBuildsIndexesOncePerRun(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	tenants := &fakeTenantSource{
		tenants: []*domain.Tenant{
			{ID: 1, Name: "Acme", Active: true},
			{ID: 2, Name: "Globex", Active: true},
		},
		creds: map[int64]*domain.TenantCredentials{
			1: {TenantID: 1, APIToken: "tok"},
			2: {TenantID: 2, APIToken: "tok"},
		},
	}

	syncer := NewSyncer(
		store,
		tenants,
		func(creds *domain.TenantCredentials) ports.UpstreamProvider { return &fakeProvider{} },
		newFakeWatermarks(),
		DefaultFeeRoutes(),
		SyncerConfig{RequestDelay: time.Nanosecond},
	)

	syncer.Run(context.Background(), domain.CreationWindow(30, now))

	if store.indexBuilds != 1 {
		t.Fatalf("index builds = %d, want 1 regardless of tenant count", store.indexBuilds)
	}
}

func TestSyncerSkipsInsideSyncInterval(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.checkpoints[checkpointKey(1, domain.WindowCreated)] = &domain.SyncCheckpoint{
		TenantID: 1, Mode: domain.WindowCreated, LastSyncedAt: now.Add(-10 * time.Minute),
	}

	tenants := &fakeTenantSource{
		tenants: []*domain.Tenant{{ID: 1, Name: "Acme", Active: true}},
		creds: map[int64]*domain.TenantCredentials{
			1: {TenantID: 1, APIToken: "tok", SyncInterval: time.Hour},
		},
	}

	fetches := 0
	provider := &fakeProvider{
		orders: func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error) {
			fetches++
			return ports.Page[ports.UpstreamOrder]{}, nil
		},
	}

	syncer := NewSyncer(
		store,
		tenants,
		func(creds *domain.TenantCredentials) ports.UpstreamProvider { return provider },
		newFakeWatermarks(),
		DefaultFeeRoutes(),
		SyncerConfig{RequestDelay: time.Nanosecond},
	)

	report := syncer.Run(context.Background(), domain.CreationWindow(30, now))

	if fetches != 0 {
		t.Fatalf("fetches = %d, tenant inside its sync interval must not hit upstream", fetches)
	}
	if !report.Tenants[0].Skipped {
		t.Fatal("tenant report should be marked skipped")
	}
	if report.Failed() {
		t.Fatalf("skip is not a failure: %v", report.Tenants[0].Errors)
	}

	// The stale checkpoint survives untouched for the next cycle.
	cp := store.checkpoints[checkpointKey(1, domain.WindowCreated)]
	if !cp.LastSyncedAt.Equal(now.Add(-10 * time.Minute)) {
		t.Fatalf("checkpoint moved to %v on a skipped run", cp.LastSyncedAt)
	}
}

func TestSyncerClampsIncrementalWindowToCheckpoint(t *testing.T) {
	now := time.Now().UTC()
	lastSynced := now.Add(-30 * time.Minute)

	store := newFakeStore()
	store.checkpoints[checkpointKey(1, domain.WindowModified)] = &domain.SyncCheckpoint{
		TenantID: 1, Mode: domain.WindowModified, LastSyncedAt: lastSynced,
	}

	tenants := &fakeTenantSource{
		tenants: []*domain.Tenant{{ID: 1, Name: "Acme", Active: true}},
		creds: map[int64]*domain.TenantCredentials{
			1: {TenantID: 1, APIToken: "tok"},
		},
	}

	var gotStart time.Time
	provider := &fakeProvider{
		orders: func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error) {
			gotStart = w.Start
			return ports.Page[ports.UpstreamOrder]{}, nil
		},
	}

	syncer := NewSyncer(
		store,
		tenants,
		func(creds *domain.TenantCredentials) ports.UpstreamProvider { return provider },
		newFakeWatermarks(),
		DefaultFeeRoutes(),
		SyncerConfig{RequestDelay: time.Nanosecond},
	)

	// Configured lookback is 3 hours, but the tenant synced 30
	// minutes ago: the watermark wins.
	syncer.Run(context.Background(), domain.ModificationWindow(180, now))

	if !gotStart.Equal(lastSynced) {
		t.Fatalf("window start = %v, want checkpoint watermark %v", gotStart, lastSynced)
	}
}
