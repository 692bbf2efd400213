package services

import (
	"context"
	"fmt"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// In-memory ports.Store for service tests. Rows are keyed the way
// the real store keys them: orders by (tenant, upstream id) with the
// upstream id unique per test tenant, shipments and transactions by
// globally unique upstream id.
type fakeStore struct {
	nextID int64

	orders       map[string]*domain.Order
	orderItems   map[int64][]*domain.OrderItem
	shipments    map[int64]*domain.Shipment
	shipItems    map[int64][]*domain.ShipmentItem
	cartons      map[int64][]*domain.Carton
	returns      map[int64]*domain.Return
	receiving    map[int64]*domain.ReceivingOrder
	mappings     []domain.InventoryMapping
	transactions map[int64]*domain.Transaction
	checkpoints  map[string]*domain.SyncCheckpoint

	timelineUpdates []*domain.Shipment
	indexBuilds     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:       make(map[string]*domain.Order),
		orderItems:   make(map[int64][]*domain.OrderItem),
		shipments:    make(map[int64]*domain.Shipment),
		shipItems:    make(map[int64][]*domain.ShipmentItem),
		cartons:      make(map[int64][]*domain.Carton),
		returns:      make(map[int64]*domain.Return),
		receiving:    make(map[int64]*domain.ReceivingOrder),
		transactions: make(map[int64]*domain.Transaction),
		checkpoints:  make(map[string]*domain.SyncCheckpoint),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) UpsertOrders(ctx context.Context, orders []*domain.Order) ports.BatchResult {
	var res ports.BatchResult
	for _, o := range orders {
		if existing, ok := f.orders[o.UpstreamID]; ok {
			if existing.DeletedAt != nil {
				res.Restored++
			}
			o.ID = existing.ID
		} else {
			o.ID = f.id()
		}
		o.DeletedAt = nil
		f.orders[o.UpstreamID] = o
		res.Upserted++
	}
	return res
}

func (f *fakeStore) UpsertOrderItems(ctx context.Context, items []*domain.OrderItem) ports.BatchResult {
	var res ports.BatchResult
	for _, it := range items {
		f.orderItems[it.OrderID] = append(f.orderItems[it.OrderID], it)
		res.Upserted++
	}
	return res
}

func (f *fakeStore) OrdersByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []string) (map[string]*domain.Order, error) {
	out := make(map[string]*domain.Order)
	for _, id := range upstreamIDs {
		if o, ok := f.orders[id]; ok && o.TenantID == tenantID {
			out[id] = o
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveOrdersCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.TenantID != tenantID || o.DeletedAt != nil {
			continue
		}
		if o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) SoftDeleteOrders(ctx context.Context, tenantID int64, orderIDs []int64, at time.Time) error {
	for _, o := range f.orders {
		for _, id := range orderIDs {
			if o.ID == id {
				t := at
				o.DeletedAt = &t
			}
		}
	}
	for _, s := range f.shipments {
		for _, id := range orderIDs {
			if s.OrderID == id {
				t := at
				s.DeletedAt = &t
			}
		}
	}
	return nil
}

func (f *fakeStore) UpsertShipments(ctx context.Context, shipments []*domain.Shipment) ports.BatchResult {
	var res ports.BatchResult
	for _, s := range shipments {
		if existing, ok := f.shipments[s.UpstreamID]; ok {
			if existing.DeletedAt != nil {
				res.Restored++
			}
			s.ID = existing.ID
		} else {
			s.ID = f.id()
		}
		s.DeletedAt = nil
		f.shipments[s.UpstreamID] = s
		res.Upserted++
	}
	return res
}

func (f *fakeStore) UpsertShipmentItems(ctx context.Context, items []*domain.ShipmentItem) ports.BatchResult {
	var res ports.BatchResult
	for _, it := range items {
		f.shipItems[it.ShipmentID] = append(f.shipItems[it.ShipmentID], it)
		res.Upserted++
	}
	return res
}

func (f *fakeStore) UpsertCartons(ctx context.Context, cartons []*domain.Carton) ports.BatchResult {
	var res ports.BatchResult
	for _, c := range cartons {
		f.cartons[c.ShipmentID] = append(f.cartons[c.ShipmentID], c)
		res.Upserted++
	}
	return res
}

func (f *fakeStore) ShipmentsByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []int64) (map[int64]*domain.Shipment, error) {
	out := make(map[int64]*domain.Shipment)
	for _, id := range upstreamIDs {
		if s, ok := f.shipments[id]; ok && s.TenantID == tenantID {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveShipmentsCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Shipment, error) {
	var out []*domain.Shipment
	for _, s := range f.shipments {
		if s.TenantID != tenantID || s.DeletedAt != nil {
			continue
		}
		if s.CreatedAt.Before(start) || s.CreatedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) SoftDeleteShipments(ctx context.Context, tenantID int64, shipmentIDs []int64, at time.Time) error {
	for _, s := range f.shipments {
		for _, id := range shipmentIDs {
			if s.ID == id {
				t := at
				s.DeletedAt = &t
			}
		}
	}
	return nil
}

func (f *fakeStore) ShipmentsForTimelinePoll(ctx context.Context, tenantID int64, maxAge time.Duration, now time.Time) ([]*domain.Shipment, error) {
	var out []*domain.Shipment
	for _, s := range f.shipments {
		if s.TenantID != tenantID || s.DeletedAt != nil || s.DeliveredAt != nil {
			continue
		}
		if now.Sub(s.CreatedAt) > maxAge {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) UpdateShipmentTimeline(ctx context.Context, shipment *domain.Shipment) error {
	f.timelineUpdates = append(f.timelineUpdates, shipment)
	f.shipments[shipment.UpstreamID] = shipment
	return nil
}

func (f *fakeStore) ShipmentTenantsByUpstreamIDs(ctx context.Context, upstreamIDs []int64) (map[int64]ports.ShipmentRef, error) {
	out := make(map[int64]ports.ShipmentRef)
	for _, id := range upstreamIDs {
		if s, ok := f.shipments[id]; ok {
			out[id] = ports.ShipmentRef{TenantID: s.TenantID, TrackingNumber: s.TrackingNumber}
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertReturns(ctx context.Context, returns []*domain.Return) ports.BatchResult {
	var res ports.BatchResult
	for _, r := range returns {
		if existing, ok := f.returns[r.UpstreamID]; ok {
			r.ID = existing.ID
		} else {
			r.ID = f.id()
		}
		f.returns[r.UpstreamID] = r
		res.Upserted++
	}
	return res
}

func (f *fakeStore) UpsertReceivingOrders(ctx context.Context, orders []*domain.ReceivingOrder) ports.BatchResult {
	var res ports.BatchResult
	for _, r := range orders {
		if existing, ok := f.receiving[r.UpstreamID]; ok {
			r.ID = existing.ID
		} else {
			r.ID = f.id()
		}
		f.receiving[r.UpstreamID] = r
		res.Upserted++
	}
	return res
}

func (f *fakeStore) ReplaceInventoryMappings(ctx context.Context, tenantID int64, mappings []domain.InventoryMapping) error {
	kept := f.mappings[:0]
	for _, m := range f.mappings {
		if m.TenantID != tenantID {
			kept = append(kept, m)
		}
	}
	f.mappings = append(kept, mappings...)
	return nil
}

func (f *fakeStore) InventoryMappings(ctx context.Context) ([]domain.InventoryMapping, error) {
	return f.mappings, nil
}

func (f *fakeStore) UpsertTransactions(ctx context.Context, txs []*domain.Transaction) ports.BatchResult {
	var res ports.BatchResult
	for _, tx := range txs {
		found := false
		for _, existing := range f.transactions {
			if existing.UpstreamID == tx.UpstreamID {
				tx.ID = existing.ID
				tx.ClientID = existing.ClientID
				found = true
				break
			}
		}
		if !found {
			tx.ID = f.id()
		}
		f.transactions[tx.ID] = tx
		res.Upserted++
	}
	return res
}

func (f *fakeStore) UnattributedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, tx := range f.transactions {
		if tx.ClientID == nil {
			out = append(out, tx)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) AttributeTransactions(ctx context.Context, owners map[int64]int64) (int, error) {
	n := 0
	for id, tenantID := range owners {
		tx, ok := f.transactions[id]
		if !ok || tx.ClientID != nil {
			continue
		}
		owner := tenantID
		tx.ClientID = &owner
		n++
	}
	return n, nil
}

func (f *fakeStore) SetTransactionTracking(ctx context.Context, tracking map[int64]string) error {
	for id, tn := range tracking {
		if tx, ok := f.transactions[id]; ok && tx.TrackingNumber == "" {
			tx.TrackingNumber = tn
		}
	}
	return nil
}

func (f *fakeStore) ShipmentOwners(ctx context.Context) (map[int64]ports.ShipmentRef, error) {
	f.indexBuilds++
	out := make(map[int64]ports.ShipmentRef)
	for id, s := range f.shipments {
		out[id] = ports.ShipmentRef{TenantID: s.TenantID, TrackingNumber: s.TrackingNumber}
	}
	return out, nil
}

func (f *fakeStore) ReturnOwners(ctx context.Context) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for id, r := range f.returns {
		out[id] = r.TenantID
	}
	return out, nil
}

func (f *fakeStore) ReceivingOrderOwners(ctx context.Context) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for id, r := range f.receiving {
		out[id] = r.TenantID
	}
	return out, nil
}

func (f *fakeStore) OrderOwners(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for id, o := range f.orders {
		out[id] = o.TenantID
	}
	return out, nil
}

func (f *fakeStore) Checkpoint(ctx context.Context, tenantID int64, mode domain.WindowMode) (*domain.SyncCheckpoint, error) {
	return f.checkpoints[checkpointKey(tenantID, mode)], nil
}

func (f *fakeStore) SaveCheckpoint(ctx context.Context, cp *domain.SyncCheckpoint) error {
	f.checkpoints[checkpointKey(cp.TenantID, cp.Mode)] = cp
	return nil
}

func checkpointKey(tenantID int64, mode domain.WindowMode) string {
	return fmt.Sprintf("%d/%s", tenantID, mode)
}

// Configurable ports.UpstreamProvider. Unset hooks return empty
// results.
type fakeProvider struct {
	orders       func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error)
	returns      func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReturn], error)
	receiving    func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReceivingOrder], error)
	products     func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamProduct], error)
	order        func(ctx context.Context, orderID string) (ports.UpstreamOrder, error)
	shipment     func(ctx context.Context, shipmentID int64) (ports.UpstreamShipment, error)
	timeline     func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error)
	transactions func(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamTransaction], error)
}

func (p *fakeProvider) Orders(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error) {
	if p.orders == nil {
		return ports.Page[ports.UpstreamOrder]{}, nil
	}
	return p.orders(ctx, w, cursor)
}

func (p *fakeProvider) Returns(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReturn], error) {
	if p.returns == nil {
		return ports.Page[ports.UpstreamReturn]{}, nil
	}
	return p.returns(ctx, w, cursor)
}

func (p *fakeProvider) ReceivingOrders(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReceivingOrder], error) {
	if p.receiving == nil {
		return ports.Page[ports.UpstreamReceivingOrder]{}, nil
	}
	return p.receiving(ctx, w, cursor)
}

func (p *fakeProvider) Products(ctx context.Context, cursor string) (ports.Page[ports.UpstreamProduct], error) {
	if p.products == nil {
		return ports.Page[ports.UpstreamProduct]{}, nil
	}
	return p.products(ctx, cursor)
}

func (p *fakeProvider) Order(ctx context.Context, orderID string) (ports.UpstreamOrder, error) {
	if p.order == nil {
		return ports.UpstreamOrder{}, ports.ErrNotFound
	}
	return p.order(ctx, orderID)
}

func (p *fakeProvider) Shipment(ctx context.Context, shipmentID int64) (ports.UpstreamShipment, error) {
	if p.shipment == nil {
		return ports.UpstreamShipment{}, ports.ErrNotFound
	}
	return p.shipment(ctx, shipmentID)
}

func (p *fakeProvider) Timeline(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
	if p.timeline == nil {
		return nil, nil
	}
	return p.timeline(ctx, shipmentID)
}

func (p *fakeProvider) Transactions(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamTransaction], error) {
	if p.transactions == nil {
		return ports.Page[ports.UpstreamTransaction]{}, nil
	}
	return p.transactions(ctx, w, cursor)
}

// In-memory watermark store for poller tests.
type fakeWatermarks struct {
	checked map[int64]time.Time
	marked  []int64
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{checked: make(map[int64]time.Time)}
}

func (f *fakeWatermarks) LastChecked(ctx context.Context, tenantID int64, shipmentIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time)
	for _, id := range shipmentIDs {
		if at, ok := f.checked[id]; ok {
			out[id] = at
		}
	}
	return out, nil
}

func (f *fakeWatermarks) MarkChecked(ctx context.Context, tenantID int64, shipmentID int64, at time.Time) error {
	f.checked[shipmentID] = at
	f.marked = append(f.marked, shipmentID)
	return nil
}
