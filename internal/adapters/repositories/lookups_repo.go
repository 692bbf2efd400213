package repositories

import (
	"context"
	"fmt"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Upsert customer returns keyed by upstream id.
func (s *SQLStore) UpsertReturns(ctx context.Context, returns []*domain.Return) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(returns) {
		query := `
		INSERT INTO returns (tenant_id, upstream_id, order_id, status, created_at)
		VALUES ` + placeholders(5, len(batch)) + `
		ON CONFLICT (upstream_id) DO UPDATE SET
			order_id = excluded.order_id,
			status = excluded.status,
			deleted_at = NULL;
		`

		args := make([]any, 0, len(batch)*5)
		for _, r := range batch {
			var orderID any
			if r.OrderID != nil {
				orderID = *r.OrderID
			}
			args = append(args, r.TenantID, r.UpstreamID, orderID, r.Status, r.CreatedAt.UTC())
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert returns", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

// Upsert receiving orders keyed by upstream id.
func (s *SQLStore) UpsertReceivingOrders(ctx context.Context, orders []*domain.ReceivingOrder) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(orders) {
		query := `
		INSERT INTO receiving_orders (tenant_id, upstream_id, status, created_at)
		VALUES ` + placeholders(4, len(batch)) + `
		ON CONFLICT (upstream_id) DO UPDATE SET
			status = excluded.status,
			deleted_at = NULL;
		`

		args := make([]any, 0, len(batch)*4)
		for _, r := range batch {
			args = append(args, r.TenantID, r.UpstreamID, r.Status, r.CreatedAt.UTC())
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert receiving orders", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

// Replace one tenant's inventory mappings with the freshly paged
// product catalog: delete the tenant's rows, then batch insert.
func (s *SQLStore) ReplaceInventoryMappings(ctx context.Context, tenantID int64, mappings []domain.InventoryMapping) error {
	query := `DELETE FROM inventory_mappings WHERE tenant_id = ?;`
	if _, err := s.DB.ExecContext(ctx, s.bind(query), tenantID); err != nil {
		return fmt.Errorf("replace inventory mappings: delete: %w", err)
	}

	for i, batch := range chunk(mappings) {
		query := `
		INSERT INTO inventory_mappings (inventory_id, tenant_id, sku)
		VALUES ` + placeholders(3, len(batch)) + `
		ON CONFLICT (inventory_id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			sku = excluded.sku;
		`

		args := make([]any, 0, len(batch)*3)
		for _, m := range batch {
			args = append(args, m.InventoryID, m.TenantID, m.SKU)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			return fmt.Errorf("replace inventory mappings: batch %d: %w", i+1, err)
		}
	}
	return nil
}

// All inventory mappings across tenants, feeding the attribution
// inventory index.
func (s *SQLStore) InventoryMappings(ctx context.Context) ([]domain.InventoryMapping, error) {
	query := `SELECT inventory_id, tenant_id, sku FROM inventory_mappings;`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inventory mappings: query: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryMapping
	for rows.Next() {
		var m domain.InventoryMapping
		if err := rows.Scan(&m.InventoryID, &m.TenantID, &m.SKU); err != nil {
			return nil, fmt.Errorf("inventory mappings: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory mappings: iterate: %w", err)
	}
	return out, nil
}
