package repositories

import (
	"context"
	"fmt"

	"fulfillment-sync-service/internal/ports"
)

// Index feeds page the full store with keyset pagination (the
// filtered/paged select primitive) into in-memory lookup tables.
const indexPageSize = 10000

// ShipmentOwners maps every active shipment's upstream id to its
// tenant and tracking id.
func (s *SQLStore) ShipmentOwners(ctx context.Context) (map[int64]ports.ShipmentRef, error) {
	out := make(map[int64]ports.ShipmentRef)
	query := s.bind(`
	SELECT id, upstream_id, tenant_id, tracking_number
	FROM shipments
	WHERE deleted_at IS NULL AND id > ?
	ORDER BY id
	LIMIT ?;
	`)

	last := int64(0)
	for {
		rows, err := s.DB.QueryContext(ctx, query, last, indexPageSize)
		if err != nil {
			return nil, fmt.Errorf("shipment owners: query: %w", err)
		}
		got := 0
		for rows.Next() {
			var id, upstreamID int64
			var ref ports.ShipmentRef
			if err := rows.Scan(&id, &upstreamID, &ref.TenantID, &ref.TrackingNumber); err != nil {
				rows.Close()
				return nil, fmt.Errorf("shipment owners: scan: %w", err)
			}
			out[upstreamID] = ref
			last = id
			got++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("shipment owners: iterate: %w", err)
		}
		rows.Close()
		if got < indexPageSize {
			return out, nil
		}
	}
}

func (s *SQLStore) ownersByUpstreamID(ctx context.Context, op, table string) (map[int64]int64, error) {
	out := make(map[int64]int64)
	query := s.bind(`
	SELECT id, upstream_id, tenant_id
	FROM ` + table + `
	WHERE deleted_at IS NULL AND id > ?
	ORDER BY id
	LIMIT ?;
	`)

	last := int64(0)
	for {
		rows, err := s.DB.QueryContext(ctx, query, last, indexPageSize)
		if err != nil {
			return nil, fmt.Errorf("%s: query: %w", op, err)
		}
		got := 0
		for rows.Next() {
			var id, upstreamID, tenantID int64
			if err := rows.Scan(&id, &upstreamID, &tenantID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: scan: %w", op, err)
			}
			out[upstreamID] = tenantID
			last = id
			got++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: iterate: %w", op, err)
		}
		rows.Close()
		if got < indexPageSize {
			return out, nil
		}
	}
}

// ReturnOwners maps every active return's upstream id to its tenant.
func (s *SQLStore) ReturnOwners(ctx context.Context) (map[int64]int64, error) {
	return s.ownersByUpstreamID(ctx, "return owners", "returns")
}

// ReceivingOrderOwners maps every active receiving order's upstream
// id to its tenant.
func (s *SQLStore) ReceivingOrderOwners(ctx context.Context) (map[int64]int64, error) {
	return s.ownersByUpstreamID(ctx, "receiving order owners", "receiving_orders")
}

// OrderOwners maps every active order's upstream id to its tenant.
func (s *SQLStore) OrderOwners(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	query := s.bind(`
	SELECT id, upstream_id, tenant_id
	FROM orders
	WHERE deleted_at IS NULL AND id > ?
	ORDER BY id
	LIMIT ?;
	`)

	last := int64(0)
	for {
		rows, err := s.DB.QueryContext(ctx, query, last, indexPageSize)
		if err != nil {
			return nil, fmt.Errorf("order owners: query: %w", err)
		}
		got := 0
		for rows.Next() {
			var id, tenantID int64
			var upstreamID string
			if err := rows.Scan(&id, &upstreamID, &tenantID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("order owners: scan: %w", err)
			}
			out[upstreamID] = tenantID
			last = id
			got++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("order owners: iterate: %w", err)
		}
		rows.Close()
		if got < indexPageSize {
			return out, nil
		}
	}
}
