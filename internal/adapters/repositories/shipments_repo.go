package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Upsert shipments in batches keyed by the globally unique upstream
// id. The conflict update never touches milestone columns, which
// belong to the timeline poller, and always clears deleted_at.
func (s *SQLStore) UpsertShipments(ctx context.Context, shipments []*domain.Shipment) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(shipments) {
		restored, err := s.countDeleted(ctx, "shipments", batch[0].TenantID, shipmentKeys(batch))
		if err != nil {
			result.Errors = append(result.Errors, batchErr("upsert shipments", i+1, err))
			continue
		}

		query := `
		INSERT INTO shipments (
			tenant_id, order_id, upstream_id, order_upstream_id, status,
			carrier, tracking_number, origin_country, destination_country,
			length_in, width_in, height_in, actual_weight_oz, billable_oz,
			created_at, last_verified_at
		) VALUES ` + placeholders(16, len(batch)) + `
		ON CONFLICT (upstream_id) DO UPDATE SET
			order_id = excluded.order_id,
			order_upstream_id = excluded.order_upstream_id,
			status = excluded.status,
			carrier = excluded.carrier,
			tracking_number = excluded.tracking_number,
			origin_country = excluded.origin_country,
			destination_country = excluded.destination_country,
			length_in = excluded.length_in,
			width_in = excluded.width_in,
			height_in = excluded.height_in,
			actual_weight_oz = excluded.actual_weight_oz,
			billable_oz = excluded.billable_oz,
			deleted_at = NULL,
			last_verified_at = excluded.last_verified_at;
		`

		args := make([]any, 0, len(batch)*16)
		for _, sh := range batch {
			args = append(args,
				sh.TenantID, sh.OrderID, sh.UpstreamID, sh.OrderUpstreamID, sh.Status,
				sh.Carrier, sh.TrackingNumber, sh.OriginCountry, sh.DestinationCountry,
				sh.LengthIn, sh.WidthIn, sh.HeightIn, sh.ActualWeightOz, sh.BillableOz,
				sh.CreatedAt.UTC(), nullTime(sh.LastVerifiedAt),
			)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert shipments", i+1, err))
			continue
		}
		result.Upserted += len(batch)
		result.Restored += restored
	}
	return result
}

// Upsert shipment items keyed by (shipment_id, product_id).
func (s *SQLStore) UpsertShipmentItems(ctx context.Context, items []*domain.ShipmentItem) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(items) {
		query := `
		INSERT INTO shipment_items (shipment_id, tenant_id, product_id, sku, name, quantity)
		VALUES ` + placeholders(6, len(batch)) + `
		ON CONFLICT (shipment_id, product_id) DO UPDATE SET
			sku = excluded.sku,
			name = excluded.name,
			quantity = excluded.quantity;
		`

		args := make([]any, 0, len(batch)*6)
		for _, it := range batch {
			args = append(args, it.ShipmentID, it.TenantID, it.ProductID, it.SKU, it.Name, it.Quantity)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert shipment items", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

// Upsert cartons keyed by (shipment_id, upstream carton id).
func (s *SQLStore) UpsertCartons(ctx context.Context, cartons []*domain.Carton) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(cartons) {
		query := `
		INSERT INTO cartons (shipment_id, tenant_id, upstream_id, carton_type, length_in, width_in, height_in, actual_weight_oz)
		VALUES ` + placeholders(8, len(batch)) + `
		ON CONFLICT (shipment_id, upstream_id) DO UPDATE SET
			carton_type = excluded.carton_type,
			length_in = excluded.length_in,
			width_in = excluded.width_in,
			height_in = excluded.height_in,
			actual_weight_oz = excluded.actual_weight_oz;
		`

		args := make([]any, 0, len(batch)*8)
		for _, ca := range batch {
			args = append(args, ca.ShipmentID, ca.TenantID, ca.UpstreamID, ca.Type, ca.LengthIn, ca.WidthIn, ca.HeightIn, ca.ActualWeightOz)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert cartons", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

const shipmentColumns = `
	id, tenant_id, order_id, upstream_id, order_upstream_id, status, carrier,
	tracking_number, origin_country, destination_country,
	length_in, width_in, height_in, actual_weight_oz, billable_oz,
	created_at, picked_at, packed_at, labeled_at, label_validated_at,
	in_transit_at, out_for_delivery_at, delivered_at, delivery_failed_at,
	transit_time_days, timeline_checked_at, deleted_at, last_verified_at`

func scanShipment(rows *sql.Rows) (*domain.Shipment, error) {
	var sh domain.Shipment
	var picked, packed, labeled, validated, transit, outFor, delivered, failed sql.NullTime
	var checked, deleted, verified sql.NullTime
	var transitDays sql.NullFloat64
	err := rows.Scan(
		&sh.ID, &sh.TenantID, &sh.OrderID, &sh.UpstreamID, &sh.OrderUpstreamID, &sh.Status, &sh.Carrier,
		&sh.TrackingNumber, &sh.OriginCountry, &sh.DestinationCountry,
		&sh.LengthIn, &sh.WidthIn, &sh.HeightIn, &sh.ActualWeightOz, &sh.BillableOz,
		&sh.CreatedAt, &picked, &packed, &labeled, &validated,
		&transit, &outFor, &delivered, &failed,
		&transitDays, &checked, &deleted, &verified,
	)
	if err != nil {
		return nil, err
	}
	sh.PickedAt = scanNullTime(picked)
	sh.PackedAt = scanNullTime(packed)
	sh.LabeledAt = scanNullTime(labeled)
	sh.LabelValidatedAt = scanNullTime(validated)
	sh.InTransitAt = scanNullTime(transit)
	sh.OutForDeliveryAt = scanNullTime(outFor)
	sh.DeliveredAt = scanNullTime(delivered)
	sh.DeliveryFailedAt = scanNullTime(failed)
	sh.TransitTimeDays = scanNullFloat(transitDays)
	sh.TimelineCheckedAt = scanNullTime(checked)
	sh.DeletedAt = scanNullTime(deleted)
	sh.LastVerifiedAt = scanNullTime(verified)
	return &sh, nil
}

func (s *SQLStore) queryShipments(ctx context.Context, op, query string, args ...any) ([]*domain.Shipment, error) {
	rows, err := s.DB.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var out []*domain.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

// Map upstream shipment ids to stored rows for one tenant.
func (s *SQLStore) ShipmentsByUpstreamIDs(ctx context.Context, tenantID int64, upstreamIDs []int64) (map[int64]*domain.Shipment, error) {
	out := make(map[int64]*domain.Shipment, len(upstreamIDs))
	if len(upstreamIDs) == 0 {
		return out, nil
	}

	for _, batch := range chunk(upstreamIDs) {
		query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE tenant_id = ? AND upstream_id IN (` + idList(len(batch)) + `);`
		args := append([]any{tenantID}, int64Args(batch)...)
		shipments, err := s.queryShipments(ctx, "shipments by upstream ids", query, args...)
		if err != nil {
			return nil, err
		}
		for _, sh := range shipments {
			out[sh.UpstreamID] = sh
		}
	}
	return out, nil
}

// Active shipments whose creation time falls inside [start,end].
func (s *SQLStore) ActiveShipmentsCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]*domain.Shipment, error) {
	query := `
	SELECT ` + shipmentColumns + `
	FROM shipments
	WHERE tenant_id = ? AND deleted_at IS NULL AND created_at >= ? AND created_at <= ?
	ORDER BY id;
	`
	return s.queryShipments(ctx, "active shipments in window", query, tenantID, start.UTC(), end.UTC())
}

// Soft delete shipments by id.
func (s *SQLStore) SoftDeleteShipments(ctx context.Context, tenantID int64, shipmentIDs []int64, at time.Time) error {
	if len(shipmentIDs) == 0 {
		return nil
	}
	for _, batch := range chunk(shipmentIDs) {
		query := `UPDATE shipments SET deleted_at = ? WHERE tenant_id = ? AND id IN (` + idList(len(batch)) + `);`
		args := append([]any{at.UTC(), tenantID}, int64Args(batch)...)
		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			return fmt.Errorf("soft delete shipments: %w", err)
		}
	}
	return nil
}

// Undelivered, active shipments created within maxAge of now,
// candidates for timeline polling.
func (s *SQLStore) ShipmentsForTimelinePoll(ctx context.Context, tenantID int64, maxAge time.Duration, now time.Time) ([]*domain.Shipment, error) {
	query := `
	SELECT ` + shipmentColumns + `
	FROM shipments
	WHERE tenant_id = ? AND deleted_at IS NULL AND delivered_at IS NULL AND created_at >= ?
	ORDER BY created_at DESC;
	`
	return s.queryShipments(ctx, "shipments for timeline poll", query, tenantID, now.Add(-maxAge).UTC())
}

// Write back milestone timestamps, status and transit time for one
// shipment.
func (s *SQLStore) UpdateShipmentTimeline(ctx context.Context, sh *domain.Shipment) error {
	query := `
	UPDATE shipments SET
		status = ?,
		tracking_number = ?,
		picked_at = ?,
		packed_at = ?,
		labeled_at = ?,
		label_validated_at = ?,
		in_transit_at = ?,
		out_for_delivery_at = ?,
		delivered_at = ?,
		delivery_failed_at = ?,
		transit_time_days = ?,
		timeline_checked_at = ?
	WHERE id = ?;
	`
	_, err := s.DB.ExecContext(ctx, s.bind(query),
		sh.Status, sh.TrackingNumber,
		nullTime(sh.PickedAt), nullTime(sh.PackedAt), nullTime(sh.LabeledAt), nullTime(sh.LabelValidatedAt),
		nullTime(sh.InTransitAt), nullTime(sh.OutForDeliveryAt), nullTime(sh.DeliveredAt), nullTime(sh.DeliveryFailedAt),
		nullFloat(sh.TransitTimeDays), nullTime(sh.TimelineCheckedAt),
		sh.ID,
	)
	if err != nil {
		return fmt.Errorf("update shipment timeline: %w", err)
	}
	return nil
}

// Tenant ownership and tracking id for upstream shipment ids across
// all tenants (upstream shipment ids are globally unique).
func (s *SQLStore) ShipmentTenantsByUpstreamIDs(ctx context.Context, upstreamIDs []int64) (map[int64]ports.ShipmentRef, error) {
	out := make(map[int64]ports.ShipmentRef, len(upstreamIDs))
	if len(upstreamIDs) == 0 {
		return out, nil
	}

	for _, batch := range chunk(upstreamIDs) {
		query := `SELECT upstream_id, tenant_id, tracking_number FROM shipments WHERE upstream_id IN (` + idList(len(batch)) + `);`
		rows, err := s.DB.QueryContext(ctx, s.bind(query), int64Args(batch)...)
		if err != nil {
			return nil, fmt.Errorf("shipment tenants by upstream ids: query: %w", err)
		}
		for rows.Next() {
			var id int64
			var ref ports.ShipmentRef
			if err := rows.Scan(&id, &ref.TenantID, &ref.TrackingNumber); err != nil {
				rows.Close()
				return nil, fmt.Errorf("shipment tenants by upstream ids: scan: %w", err)
			}
			out[id] = ref
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("shipment tenants by upstream ids: iterate: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

func shipmentKeys(shipments []*domain.Shipment) []any {
	keys := make([]any, len(shipments))
	for i, sh := range shipments {
		keys[i] = sh.UpstreamID
	}
	return keys
}
