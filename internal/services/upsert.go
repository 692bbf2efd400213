package services

import (
	"context"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// upsertOutcome carries what later stages need: seen upstream ids
// for reconciliation and the stored shipment rows for the timeline
// poller and attribution indexes.
type upsertOutcome struct {
	SeenOrderIDs    map[string]struct{}
	SeenShipmentIDs map[int64]struct{}
	Shipments       map[int64]*domain.Shipment
}

// upsertOrders maps raw upstream orders into the internal schema and
// applies idempotent batched writes for orders, shipments, items and
// cartons, in that dependency order. Partial batch failure never
// aborts: counts and error strings land on the report and later
// batches still run.
func upsertOrders(
	ctx context.Context,
	store ports.Store,
	tenantID int64,
	raw []ports.UpstreamOrder,
	now time.Time,
	report *domain.TenantReport,
) upsertOutcome {
	outcome := upsertOutcome{
		SeenOrderIDs:    make(map[string]struct{}, len(raw)),
		SeenShipmentIDs: make(map[int64]struct{}),
		Shipments:       make(map[int64]*domain.Shipment),
	}
	report.Orders.Found += len(raw)
	if len(raw) == 0 {
		return outcome
	}

	orders := make([]*domain.Order, 0, len(raw))
	upstreamIDs := make([]string, 0, len(raw))
	for _, o := range raw {
		outcome.SeenOrderIDs[o.ID] = struct{}{}
		upstreamIDs = append(upstreamIDs, o.ID)
		orders = append(orders, &domain.Order{
			TenantID:       tenantID,
			UpstreamID:     o.ID,
			ReferenceID:    o.ReferenceID,
			Status:         o.Status,
			Type:           o.Type,
			Channel:        o.Channel,
			PurchaseDate:   o.PurchaseDate,
			CreatedAt:      o.CreatedAt,
			UpdatedAt:      now,
			LastVerifiedAt: &now,
		})
	}

	res := store.UpsertOrders(ctx, orders)
	report.Orders.Upserted += res.Upserted
	report.Orders.Restored += res.Restored
	report.Errors = append(report.Errors, res.Errors...)

	stored, err := store.OrdersByUpstreamIDs(ctx, tenantID, upstreamIDs)
	if err != nil {
		report.Errorf("map stored orders: %v", err)
		return outcome
	}

	var items []*domain.OrderItem
	var shipments []*domain.Shipment
	shipmentUpstreamIDs := make([]int64, 0, len(raw))
	for _, o := range raw {
		row, ok := stored[o.ID]
		if !ok {
			// The order's own batch failed; its children have no
			// parent id yet and wait for the next run.
			continue
		}
		for _, it := range o.Items {
			items = append(items, &domain.OrderItem{
				OrderID:   row.ID,
				TenantID:  tenantID,
				ProductID: it.ProductID,
				SKU:       it.SKU,
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}
		for _, sh := range o.Shipments {
			outcome.SeenShipmentIDs[sh.ID] = struct{}{}
			shipmentUpstreamIDs = append(shipmentUpstreamIDs, sh.ID)
			shipments = append(shipments, mapShipmentRow(tenantID, row.ID, o.ID, sh, now))
		}
	}

	report.Items.Found += len(items)
	itemRes := store.UpsertOrderItems(ctx, items)
	report.Items.Upserted += itemRes.Upserted
	report.Errors = append(report.Errors, itemRes.Errors...)

	report.Shipments.Found += len(shipments)
	if len(shipments) > 0 {
		shipRes := store.UpsertShipments(ctx, shipments)
		report.Shipments.Upserted += shipRes.Upserted
		report.Shipments.Restored += shipRes.Restored
		report.Errors = append(report.Errors, shipRes.Errors...)
	}

	storedShipments, err := store.ShipmentsByUpstreamIDs(ctx, tenantID, shipmentUpstreamIDs)
	if err != nil {
		report.Errorf("map stored shipments: %v", err)
		return outcome
	}
	outcome.Shipments = storedShipments

	upsertShipmentChildren(ctx, store, tenantID, raw, storedShipments, report)
	return outcome
}

func mapShipmentRow(tenantID, orderID int64, orderUpstreamID string, sh ports.UpstreamShipment, now time.Time) *domain.Shipment {
	return &domain.Shipment{
		TenantID:           tenantID,
		OrderID:            orderID,
		UpstreamID:         sh.ID,
		OrderUpstreamID:    orderUpstreamID,
		Status:             sh.Status,
		Carrier:            sh.Carrier,
		TrackingNumber:     sh.TrackingNumber,
		OriginCountry:      sh.OriginCountry,
		DestinationCountry: sh.DestinationCountry,
		LengthIn:           sh.LengthIn,
		WidthIn:            sh.WidthIn,
		HeightIn:           sh.HeightIn,
		ActualWeightOz:     sh.ActualWeightOz,
		BillableOz: domain.BillableWeightOz(
			sh.LengthIn, sh.WidthIn, sh.HeightIn, sh.ActualWeightOz,
			sh.OriginCountry, sh.DestinationCountry,
		),
		CreatedAt:      sh.CreatedAt,
		LastVerifiedAt: &now,
	}
}

// upsertShipmentChildren writes shipment items and cartons.
// Quantity resolution: shipment-level product records may omit
// quantity; resolve by joining the order's items on product id,
// falling back to SKU. A shipment reporting zero items (common for
// archived shipments) gets its items synthesized from the order's
// items instead.
func upsertShipmentChildren(
	ctx context.Context,
	store ports.Store,
	tenantID int64,
	raw []ports.UpstreamOrder,
	storedShipments map[int64]*domain.Shipment,
	report *domain.TenantReport,
) {
	var items []*domain.ShipmentItem
	var cartons []*domain.Carton

	for _, o := range raw {
		byProduct := make(map[int64]ports.UpstreamOrderItem, len(o.Items))
		bySKU := make(map[string]ports.UpstreamOrderItem, len(o.Items))
		for _, it := range o.Items {
			byProduct[it.ProductID] = it
			if it.SKU != "" {
				bySKU[it.SKU] = it
			}
		}

		for _, sh := range o.Shipments {
			row, ok := storedShipments[sh.ID]
			if !ok {
				continue
			}

			if len(sh.Items) == 0 {
				for _, it := range o.Items {
					items = append(items, &domain.ShipmentItem{
						ShipmentID: row.ID,
						TenantID:   tenantID,
						ProductID:  it.ProductID,
						SKU:        it.SKU,
						Name:       it.Name,
						Quantity:   it.Quantity,
					})
				}
			} else {
				for _, it := range sh.Items {
					qty := 0
					if it.Quantity != nil {
						qty = *it.Quantity
					} else if match, ok := byProduct[it.ProductID]; ok {
						qty = match.Quantity
					} else if match, ok := bySKU[it.SKU]; ok {
						qty = match.Quantity
					}
					items = append(items, &domain.ShipmentItem{
						ShipmentID: row.ID,
						TenantID:   tenantID,
						ProductID:  it.ProductID,
						SKU:        it.SKU,
						Name:       it.Name,
						Quantity:   qty,
					})
				}
			}

			for _, ca := range sh.Cartons {
				cartons = append(cartons, &domain.Carton{
					ShipmentID:     row.ID,
					TenantID:       tenantID,
					UpstreamID:     ca.ID,
					Type:           ca.Type,
					LengthIn:       ca.LengthIn,
					WidthIn:        ca.WidthIn,
					HeightIn:       ca.HeightIn,
					ActualWeightOz: ca.ActualWeightOz,
				})
			}
		}
	}

	if len(items) > 0 {
		res := store.UpsertShipmentItems(ctx, items)
		report.Items.Upserted += res.Upserted
		report.Errors = append(report.Errors, res.Errors...)
	}
	if len(cartons) > 0 {
		report.Cartons.Found += len(cartons)
		res := store.UpsertCartons(ctx, cartons)
		report.Cartons.Upserted += res.Upserted
		report.Errors = append(report.Errors, res.Errors...)
	}
}
