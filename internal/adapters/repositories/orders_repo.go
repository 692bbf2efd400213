package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Upsert orders in batches keyed by (tenant_id, upstream_id). The
// conflict update always clears deleted_at, which is the whole
// restoration path: a reappearing order self-heals on plain upsert.
// Callers pass one tenant's rows per call (runs are tenant-scoped).
func (s *SQLStore) UpsertOrders(ctx context.Context, orders []*domain.Order) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(orders) {
		restored, err := s.countDeleted(ctx, "orders", batch[0].TenantID, orderKeys(batch))
		if err != nil {
			result.Errors = append(result.Errors, batchErr("upsert orders", i+1, err))
			continue
		}

		query := `
		INSERT INTO orders (
			tenant_id, upstream_id, reference_id, status, order_type,
			channel, purchase_date, created_at, updated_at, last_verified_at
		) VALUES ` + placeholders(10, len(batch)) + `
		ON CONFLICT (tenant_id, upstream_id) DO UPDATE SET
			reference_id = excluded.reference_id,
			status = excluded.status,
			order_type = excluded.order_type,
			channel = excluded.channel,
			purchase_date = excluded.purchase_date,
			updated_at = excluded.updated_at,
			deleted_at = NULL,
			last_verified_at = excluded.last_verified_at;
		`

		args := make([]any, 0, len(batch)*10)
		for _, o := range batch {
			args = append(args,
				o.TenantID, o.UpstreamID, o.ReferenceID, o.Status, o.Type,
				o.Channel, nullTime(o.PurchaseDate), o.CreatedAt.UTC(), o.UpdatedAt.UTC(), nullTime(o.LastVerifiedAt),
			)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert orders", i+1, err))
			continue
		}
		result.Upserted += len(batch)
		result.Restored += restored
	}
	return result
}

// Upsert order items keyed by (order_id, product_id).
func (s *SQLStore) UpsertOrderItems(ctx context.Context, items []*domain.OrderItem) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(items) {
		query := `
		INSERT INTO order_items (order_id, tenant_id, product_id, sku, name, quantity, unit_price)
		VALUES ` + placeholders(7, len(batch)) + `
		ON CONFLICT (order_id, product_id) DO UPDATE SET
			sku = excluded.sku,
			name = excluded.name,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price;
		`

		args := make([]any, 0, len(batch)*7)
		for _, it := range batch {
			args = append(args, it.OrderID, it.TenantID, it.ProductID, it.SKU, it.Name, it.Quantity, it.UnitPrice)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert order items", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

const orderColumns = `
	id, tenant_id, upstream_id, reference_id, status, order_type, channel,
	purchase_date, created_at, updated_at, deleted_at, last_verified_at`

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	var o domain.Order
	var purchase, deleted, verified sql.NullTime
	err := rows.Scan(
		&o.ID, &o.TenantID, &o.UpstreamID, &o.ReferenceID, &o.Status, &o.Type, &o.Channel,
		&purchase, &o.CreatedAt, &o.UpdatedAt, &deleted, &verified,
	)
	if err != nil {
		return nil, err
	}
	o.PurchaseDate = scanNullTime(purchase)
	o.DeletedAt = scanNullTime(deleted)
	o.LastVerifiedAt = scanNullTime(verified)
	return &o, nil
}

// Map upstream order ids to stored rows for one tenant.
func (s *SQLStore) OrdersByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []string) (map[string]*domain.Order, error) {
	out := make(map[string]*domain.Order, len(upstreamIDs))
	if len(upstreamIDs) == 0 {
		return out, nil
	}

	for _, batch := range chunk(upstreamIDs) {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = ? AND upstream_id IN (` + idList(len(batch)) + `);`
		args := make([]any, 0, len(batch)+1)
		args = append(args, tenantID)
		for _, id := range batch {
			args = append(args, id)
		}

		rows, err := s.DB.QueryContext(ctx, s.bind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("orders by upstream ids: query: %w", err)
		}
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("orders by upstream ids: scan: %w", err)
			}
			out[o.UpstreamID] = o
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("orders by upstream ids: iterate: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// Active orders whose creation time falls inside [start,end].
func (s *SQLStore) ActiveOrdersCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Order, error) {
	query := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE tenant_id = ? AND deleted_at IS NULL AND created_at >= ? AND created_at <= ?
	ORDER BY id;
	`
	rows, err := s.DB.QueryContext(ctx, s.bind(query), tenantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("active orders in window: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("active orders in window: scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active orders in window: iterate: %w", err)
	}
	return out, nil
}

// Soft delete orders by id, cascading to their shipments.
func (s *SQLStore) SoftDeleteOrders(ctx context.Context, tenantID int64, orderIDs []int64, at time.Time) error {
	if len(orderIDs) == 0 {
		return nil
	}
	for _, batch := range chunk(orderIDs) {
		list := idList(len(batch))
		args := append([]any{at.UTC(), tenantID}, int64Args(batch)...)

		query := `UPDATE orders SET deleted_at = ? WHERE tenant_id = ? AND id IN (` + list + `);`
		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			return fmt.Errorf("soft delete orders: %w", err)
		}

		query = `UPDATE shipments SET deleted_at = ? WHERE tenant_id = ? AND order_id IN (` + list + `) AND deleted_at IS NULL;`
		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			return fmt.Errorf("soft delete orders: cascade shipments: %w", err)
		}
	}
	return nil
}

func orderKeys(orders []*domain.Order) []any {
	keys := make([]any, len(orders))
	for i, o := range orders {
		keys[i] = o.UpstreamID
	}
	return keys
}

// countDeleted reports how many of the given upstream keys are
// currently soft-deleted, so upserts can count restorations.
func (s *SQLStore) countDeleted(ctx context.Context, table string, tenantID int64, keys []any) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE tenant_id = ? AND deleted_at IS NOT NULL AND upstream_id IN (` + idList(len(keys)) + `);`
	args := make([]any, 0, len(keys)+1)
	args = append(args, tenantID)
	for _, k := range keys {
		args = append(args, k)
	}
	var n int
	if err := s.DB.QueryRowContext(ctx, s.bind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deleted in %s: %w", table, err)
	}
	return n, nil
}
