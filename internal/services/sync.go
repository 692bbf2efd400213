package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/platform/obs"
	"fulfillment-sync-service/internal/ports"
)

// SyncerConfig tunes one engine instance.
type SyncerConfig struct {
	// Fixed inter-request delay per tenant (default 250ms).
	RequestDelay time.Duration
	Poller       TimelinePollerConfig
}

// Syncer runs one bounded reconciliation pass per invocation. There
// is no internal scheduler: callers control total work by bounding
// the window and the tenant set they schedule.
type Syncer struct {
	store      ports.Store
	tenants    ports.TenantSource
	providers  ports.ProviderFactory
	watermarks ports.PollWatermarks
	routes     *FeeRoutes
	config     SyncerConfig
}

func NewSyncer(
	store ports.Store,
	tenants ports.TenantSource,
	providers ports.ProviderFactory,
	watermarks ports.PollWatermarks,
	routes *FeeRoutes,
	config SyncerConfig,
) *Syncer {
	if config.RequestDelay <= 0 {
		config.RequestDelay = 250 * time.Millisecond
	}
	return &Syncer{
		store:      store,
		tenants:    tenants,
		providers:  providers,
		watermarks: watermarks,
		routes:     routes,
		config:     config,
	}
}

// Run syncs every active tenant concurrently for the given window.
// Tenants are independent tasks, each with its own rate budget; one
// tenant's failure never fails the others.
func (s *Syncer) Run(ctx context.Context, window domain.SyncWindow) *domain.RunReport {
	report := &domain.RunReport{RunID: uuid.NewString()}
	ctx = context.WithValue(ctx, obs.RunIDKey, report.RunID)

	tenants, err := s.tenants.ActiveTenants(ctx)
	if err != nil {
		report.Errorf("load tenants: %v", err)
		return report
	}
	if len(tenants) == 0 {
		return report
	}

	results := make([]domain.TenantReport, len(tenants))
	var wg sync.WaitGroup
	for i, tenant := range tenants {
		wg.Add(1)
		go func(i int, tenant *domain.Tenant) {
			defer wg.Done()
			results[i] = s.syncTenant(ctx, tenant, window)
		}(i, tenant)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].TenantID < results[j].TenantID })
	report.Tenants = results

	// Attribution is a run-level stage: the indexes page the whole
	// store once, the cascade works the global backlog once, and
	// each tenant's report is credited with its own rows.
	indexes, err := BuildIndexes(ctx, s.store, tenants)
	if err != nil {
		report.Errorf("attribution: %v", err)
		return report
	}
	attributor := NewAttributor(s.store, DefaultStrategies(s.routes))
	attributor.Run(ctx, indexes, report)
	return report
}

// syncTenant is one tenant's full pass. No error escapes: every
// failure lands in the report's error list. Stages run in dependency
// order because later stages read ids produced earlier.
func (s *Syncer) syncTenant(ctx context.Context, tenant *domain.Tenant, window domain.SyncWindow) (report domain.TenantReport) {
	defer obs.Time(ctx, "sync.tenant")(nil)

	report.TenantID = tenant.ID
	now := time.Now().UTC()

	creds, err := s.tenants.Credentials(ctx, tenant.ID)
	if err != nil {
		// Fatal for this tenant only.
		report.Errorf("credentials: %v", err)
		return report
	}

	checkpoint, err := s.store.Checkpoint(ctx, tenant.ID, window.Mode)
	if err != nil {
		// Fail open: an unreadable watermark only costs a redundant
		// pass.
		report.Errorf("load checkpoint: %v", err)
		checkpoint = nil
	}
	if checkpoint != nil {
		if creds.SyncInterval > 0 && now.Sub(checkpoint.LastSyncedAt) < creds.SyncInterval {
			report.Skipped = true
			return report
		}
		// For incremental syncs the saved watermark supersedes the
		// configured lookback: it fills the gap after downtime and
		// trims the overlap after quick reruns.
		if window.Mode == domain.WindowModified && checkpoint.LastSyncedAt.Before(window.End) {
			window.Start = checkpoint.LastSyncedAt
		}
	}

	provider := s.providers(creds)
	pacer := NewPacer(s.config.RequestDelay)

	// Orders (shipments embedded) feed everything downstream. A
	// fetch error still leaves the records collected before it.
	rawOrders, err := fetchOrders(ctx, provider, pacer, window)
	if err != nil {
		report.Errorf("fetch orders: %v", err)
	}
	outcome := upsertOrders(ctx, s.store, tenant.ID, rawOrders, now, &report)

	s.syncReturns(ctx, provider, pacer, tenant.ID, window, &report)
	s.syncReceivingOrders(ctx, provider, pacer, tenant.ID, window, &report)

	// The product catalog backs the inventory attribution index;
	// a full page-through is only worth the rate budget on full
	// syncs.
	if window.Mode == domain.WindowCreated {
		s.syncProducts(ctx, provider, pacer, tenant.ID, &report)
	}

	reconcileOrders(ctx, s.store, provider, pacer, tenant.ID, window, outcome.SeenOrderIDs, now, &report)
	reconcileShipments(ctx, s.store, provider, pacer, tenant.ID, window, outcome.SeenShipmentIDs, now, &report)

	poller := NewTimelinePoller(s.store, s.watermarks, s.config.Poller)
	poller.Poll(ctx, provider, pacer, tenant.ID, now, &report)

	s.syncTransactions(ctx, provider, pacer, window, now, &report)

	saved := &domain.SyncCheckpoint{
		TenantID:     tenant.ID,
		Mode:         window.Mode,
		LastSyncedAt: now,
	}
	if window.Mode == domain.WindowCreated {
		saved.LastVerifiedAt = &now
	}
	if err := s.store.SaveCheckpoint(ctx, saved); err != nil {
		report.Errorf("save checkpoint: %v", err)
	}

	return report
}

func (s *Syncer) syncReturns(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, tenantID int64, window domain.SyncWindow, report *domain.TenantReport) {
	raw, err := fetchReturns(ctx, provider, pacer, window)
	if err != nil {
		report.Errorf("fetch returns: %v", err)
	}
	report.Returns.Found += len(raw)
	if len(raw) == 0 {
		return
	}

	orderIDs := make([]string, 0, len(raw))
	for _, r := range raw {
		if r.OrderUpstreamID != "" {
			orderIDs = append(orderIDs, r.OrderUpstreamID)
		}
	}
	orders, err := s.store.OrdersByUpstreamIDs(ctx, tenantID, orderIDs)
	if err != nil {
		report.Errorf("sync returns: map orders: %v", err)
		orders = map[string]*domain.Order{}
	}

	rows := make([]*domain.Return, 0, len(raw))
	for _, r := range raw {
		row := &domain.Return{
			TenantID:   tenantID,
			UpstreamID: r.ID,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
		}
		if order, ok := orders[r.OrderUpstreamID]; ok {
			row.OrderID = &order.ID
		}
		rows = append(rows, row)
	}

	res := s.store.UpsertReturns(ctx, rows)
	report.Returns.Upserted += res.Upserted
	report.Errors = append(report.Errors, res.Errors...)
}

func (s *Syncer) syncReceivingOrders(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, tenantID int64, window domain.SyncWindow, report *domain.TenantReport) {
	raw, err := fetchReceivingOrders(ctx, provider, pacer, window)
	if err != nil {
		report.Errorf("fetch receiving orders: %v", err)
	}
	report.Receiving.Found += len(raw)
	if len(raw) == 0 {
		return
	}

	rows := make([]*domain.ReceivingOrder, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, &domain.ReceivingOrder{
			TenantID:   tenantID,
			UpstreamID: r.ID,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
		})
	}

	res := s.store.UpsertReceivingOrders(ctx, rows)
	report.Receiving.Upserted += res.Upserted
	report.Errors = append(report.Errors, res.Errors...)
}

func (s *Syncer) syncProducts(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, tenantID int64, report *domain.TenantReport) {
	raw, err := fetchProducts(ctx, provider, pacer)
	if err != nil {
		report.Errorf("fetch products: %v", err)
		return
	}
	if len(raw) == 0 {
		return
	}

	mappings := make([]domain.InventoryMapping, 0, len(raw))
	for _, p := range raw {
		mappings = append(mappings, domain.InventoryMapping{
			InventoryID: p.InventoryID,
			TenantID:    tenantID,
			SKU:         p.SKU,
		})
	}
	if err := s.store.ReplaceInventoryMappings(ctx, tenantID, mappings); err != nil {
		report.Errorf("sync products: %v", err)
	}
}

func (s *Syncer) syncTransactions(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, window domain.SyncWindow, now time.Time, report *domain.TenantReport) {
	raw, err := fetchTransactions(ctx, provider, pacer, window)
	if err != nil {
		report.Errorf("fetch transactions: %v", err)
	}
	report.TransactionsFound += len(raw)
	if len(raw) == 0 {
		return
	}

	rows := make([]*domain.Transaction, 0, len(raw))
	for _, t := range raw {
		rows = append(rows, &domain.Transaction{
			UpstreamID:      t.ID,
			ReferenceType:   t.ReferenceType,
			ReferenceID:     t.ReferenceID,
			FeeType:         t.FeeType,
			Amount:          t.Amount,
			Currency:        t.Currency,
			Comment:         t.Comment,
			TrackingNumber:  t.TrackingNumber,
			MetaInventoryID: t.MetaInventoryID,
			TransactedAt:    t.TransactedAt,
			CreatedAt:       now,
		})
	}

	res := s.store.UpsertTransactions(ctx, rows)
	report.Errors = append(report.Errors, res.Errors...)
}
