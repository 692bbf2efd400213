package ports

import (
	"context"
	"time"

	"fulfillment-sync-service/internal/domain"
)

// BatchResult reports one batched write. Partial failure never
// aborts the run: counts and error strings flow up to the report and
// subsequent batches still execute.
type BatchResult struct {
	Upserted int
	Restored int
	Errors   []string
}

// OrderStore persists orders and order items.
type OrderStore interface {
	UpsertOrders(ctx context.Context, orders []*domain.Order) BatchResult
	UpsertOrderItems(ctx context.Context, items []*domain.OrderItem) BatchResult
	// Map upstream order ids to stored rows for one tenant.
	OrdersByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []string) (map[string]*domain.Order, error)
	// Active (not soft-deleted) orders created inside [start,end].
	ActiveOrdersCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Order, error)
	// Soft delete by id list, cascading to the orders' shipments.
	SoftDeleteOrders(ctx context.Context, tenantID int64, orderIDs []int64, at time.Time) error
}

// ShipmentStore persists shipments, shipment items and cartons.
type ShipmentStore interface {
	UpsertShipments(ctx context.Context, shipments []*domain.Shipment) BatchResult
	UpsertShipmentItems(ctx context.Context, items []*domain.ShipmentItem) BatchResult
	UpsertCartons(ctx context.Context, cartons []*domain.Carton) BatchResult
	ShipmentsByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []int64) (map[int64]*domain.Shipment, error)
	ActiveShipmentsCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Shipment, error)
	SoftDeleteShipments(ctx context.Context, tenantID int64, shipmentIDs []int64, at time.Time) error
	// Undelivered shipments no older than maxAge, for timeline polling.
	ShipmentsForTimelinePoll(ctx context.Context, tenantID int64, maxAge time.Duration, now time.Time) ([]*domain.Shipment, error)
	// Write back milestone timestamps, status and transit time.
	UpdateShipmentTimeline(ctx context.Context, shipment *domain.Shipment) error
	// Tenant ownership for shipment upstream ids regardless of
	// tenant (upstream shipment ids are globally unique). Feeds the
	// attribution sweep join.
	ShipmentTenantsByUpstreamIDs(ctx context.Context, upstreamIDs []int64) (map[int64]ShipmentRef, error)
}

// ShipmentRef is the slice of a shipment row the attribution sweeps
// need: owner and carrier tracking id.
type ShipmentRef struct {
	TenantID       int64
	TrackingNumber string
}

// LookupStore persists the secondary entities used purely as
// attribution lookup sources.
type LookupStore interface {
	UpsertReturns(ctx context.Context, returns []*domain.Return) BatchResult
	UpsertReceivingOrders(ctx context.Context, orders []*domain.ReceivingOrder) BatchResult
	ReplaceInventoryMappings(ctx context.Context, tenantID int64, mappings []domain.InventoryMapping) error
	InventoryMappings(ctx context.Context) ([]domain.InventoryMapping, error)
}

// TransactionStore persists financial transactions. ClientID is
// monotonic: the store only ever sets it where currently null.
type TransactionStore interface {
	UpsertTransactions(ctx context.Context, txs []*domain.Transaction) BatchResult
	UnattributedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error)
	// Set client_id where currently null; returns how many rows
	// actually changed.
	AttributeTransactions(ctx context.Context, owners map[int64]int64) (int, error)
	// Backfill carrier tracking ids on shipment-referenced rows.
	SetTransactionTracking(ctx context.Context, tracking map[int64]string) error
}

// IndexStore feeds the per-run attribution lookup tables by fully
// paging the store.
type IndexStore interface {
	ShipmentOwners(ctx context.Context) (map[int64]ShipmentRef, error)
	ReturnOwners(ctx context.Context) (map[int64]int64, error)
	ReceivingOrderOwners(ctx context.Context) (map[int64]int64, error)
	OrderOwners(ctx context.Context) (map[string]int64, error)
}

// CheckpointStore persists per-tenant, per-mode sync watermarks.
type CheckpointStore interface {
	Checkpoint(ctx context.Context, tenantID int64, mode domain.WindowMode) (*domain.SyncCheckpoint, error)
	SaveCheckpoint(ctx context.Context, cp *domain.SyncCheckpoint) error
}

// Store aggregates every persistence boundary the sync engine
// consumes. The backing implementation reduces all of it to four
// primitives: batched upsert, batched insert, delete-by-key-list and
// filtered select.
type Store interface {
	OrderStore
	ShipmentStore
	LookupStore
	TransactionStore
	IndexStore
	CheckpointStore
}
