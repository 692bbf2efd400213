package services

import (
	"context"
	"strconv"
	"strings"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Bound on unattributed rows re-examined per pass. Anything beyond
// it waits for the next invocation.
const attributionBatchLimit = 20000

// Attributor resolves tenant ownership for transactions lacking a
// direct tenant identifier, via the ordered strategy cascade. Write
// policy: client_id is only ever written on a match, and the store
// only fills nulls, so ownership is monotonic under re-runs.
type Attributor struct {
	store      ports.Store
	strategies []AttributionStrategy
}

func NewAttributor(store ports.Store, strategies []AttributionStrategy) *Attributor {
	return &Attributor{store: store, strategies: strategies}
}

// Run executes the primary cascade over all unattributed
// transactions, then the two corrective sweeps. Unmatched
// transactions stay persisted unattributed and are retried once the
// supporting indexes are more complete. Run-level totals land on the
// run report; each resolved row is additionally credited to its
// owning tenant's report, never to whichever tenant fetched it.
func (a *Attributor) Run(ctx context.Context, idx *Indexes, report *domain.RunReport) {
	pending, err := a.store.UnattributedTransactions(ctx, attributionBatchLimit)
	if err != nil {
		report.Errorf("attribution: load pending: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	owners := make(map[int64]int64)
	for _, tx := range pending {
		for _, strategy := range a.strategies {
			if tenantID, ok := strategy.TryAttribute(tx, idx); ok {
				owners[tx.ID] = tenantID
				break
			}
		}
	}

	perTenant := make(map[int64]int)
	attributed := a.writeOwners(ctx, owners, perTenant, report)

	remaining := make([]*domain.Transaction, 0, len(pending)-len(owners))
	for _, tx := range pending {
		if _, ok := owners[tx.ID]; !ok {
			remaining = append(remaining, tx)
		}
	}

	attributed += a.sweepShipmentJoin(ctx, remaining, perTenant, report)
	a.sweepTrackingBackfill(ctx, pending, report)

	report.TransactionsAttributed += attributed
	report.TransactionsUnattributed += len(pending) - attributed
	for i := range report.Tenants {
		report.Tenants[i].TransactionsAttributed += perTenant[report.Tenants[i].TenantID]
	}
}

// writeOwners persists resolved ownership one tenant group at a
// time, so the store's changed-row counts stay per tenant under the
// null-only write policy.
func (a *Attributor) writeOwners(ctx context.Context, owners map[int64]int64, perTenant map[int64]int, report *domain.RunReport) int {
	byTenant := make(map[int64]map[int64]int64)
	for txID, tenantID := range owners {
		group := byTenant[tenantID]
		if group == nil {
			group = make(map[int64]int64)
			byTenant[tenantID] = group
		}
		group[txID] = tenantID
	}

	total := 0
	for tenantID, group := range byTenant {
		n, err := a.store.AttributeTransactions(ctx, group)
		if err != nil {
			report.Errorf("attribution: write owners for tenant %d: %v", tenantID, err)
		}
		perTenant[tenantID] += n
		total += n
	}
	return total
}

// sweepShipmentJoin re-resolves still-unattributed shipment-
// referenced transactions with a direct join against the now-
// complete shipment table, covering lookup-table staleness at
// cascade time.
func (a *Attributor) sweepShipmentJoin(ctx context.Context, pending []*domain.Transaction, perTenant map[int64]int, report *domain.RunReport) int {
	byShipment := make(map[int64][]*domain.Transaction)
	for _, tx := range pending {
		if tx.ReferenceType != domain.RefShipment {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64)
		if err != nil {
			continue
		}
		byShipment[id] = append(byShipment[id], tx)
	}
	if len(byShipment) == 0 {
		return 0
	}

	ids := make([]int64, 0, len(byShipment))
	for id := range byShipment {
		ids = append(ids, id)
	}
	refs, err := a.store.ShipmentTenantsByUpstreamIDs(ctx, ids)
	if err != nil {
		report.Errorf("attribution: shipment join sweep: %v", err)
		return 0
	}

	owners := make(map[int64]int64)
	for id, ref := range refs {
		for _, tx := range byShipment[id] {
			owners[tx.ID] = ref.TenantID
		}
	}
	if len(owners) == 0 {
		return 0
	}
	return a.writeOwners(ctx, owners, perTenant, report)
}

// sweepTrackingBackfill copies the carrier tracking id from the
// shipment row onto shipment-referenced transactions missing one.
// Upstream only embeds tracking data on one fee type even though
// several fee types reference the same shipment.
func (a *Attributor) sweepTrackingBackfill(ctx context.Context, pending []*domain.Transaction, report *domain.RunReport) {
	byShipment := make(map[int64][]*domain.Transaction)
	for _, tx := range pending {
		if tx.ReferenceType != domain.RefShipment || tx.TrackingNumber != "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64)
		if err != nil {
			continue
		}
		byShipment[id] = append(byShipment[id], tx)
	}
	if len(byShipment) == 0 {
		return
	}

	ids := make([]int64, 0, len(byShipment))
	for id := range byShipment {
		ids = append(ids, id)
	}
	refs, err := a.store.ShipmentTenantsByUpstreamIDs(ctx, ids)
	if err != nil {
		report.Errorf("attribution: tracking backfill: %v", err)
		return
	}

	tracking := make(map[int64]string)
	for id, ref := range refs {
		if ref.TrackingNumber == "" {
			continue
		}
		for _, tx := range byShipment[id] {
			tracking[tx.ID] = ref.TrackingNumber
		}
	}
	if len(tracking) == 0 {
		return
	}
	if err := a.store.SetTransactionTracking(ctx, tracking); err != nil {
		report.Errorf("attribution: tracking backfill write: %v", err)
	}
}
