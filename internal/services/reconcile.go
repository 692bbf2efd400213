package services

import (
	"context"
	"errors"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// reconcileOrders detects and verifies true upstream deletions. It
// runs only on creation-window syncs, where the window is stable:
// an active local order created inside the window but absent from
// the ids seen this sync is a candidate; a point existence check
// returning 404 confirms the deletion (cascading to the order's
// shipments). Any other outcome, success or failure, leaves the
// entity untouched and it is retried next cycle. Restoration needs
// no code here: the next sync's plain upsert clears deleted_at.
func reconcileOrders(
	ctx context.Context,
	store ports.Store,
	provider ports.UpstreamProvider,
	pacer *Pacer,
	tenantID int64,
	window domain.SyncWindow,
	seenOrderIDs map[string]struct{},
	now time.Time,
	report *domain.TenantReport,
) {
	if window.Mode != domain.WindowCreated {
		return
	}

	local, err := store.ActiveOrdersCreatedBetween(ctx, tenantID, window.Start, window.End)
	if err != nil {
		report.Errorf("reconcile orders: load local window: %v", err)
		return
	}

	var confirmed []int64
	for _, order := range local {
		// Anything outside the window is never a deletion
		// candidate, whatever the store returned.
		if !window.Contains(order.CreatedAt) {
			continue
		}
		if _, ok := seenOrderIDs[order.UpstreamID]; ok {
			continue
		}

		if err := pacer.Wait(ctx); err != nil {
			report.Errorf("reconcile orders: %v", err)
			break
		}

		_, err := provider.Order(ctx, order.UpstreamID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			confirmed = append(confirmed, order.ID)
		case err != nil:
			// Fail safe: rate limits, network errors and anything
			// ambiguous leave the order untouched for the next
			// cycle. Never delete on ambiguity.
			continue
		default:
			// The order exists upstream and simply fell outside
			// this window's page set. Leave it alone.
		}
	}

	if len(confirmed) == 0 {
		return
	}
	if err := store.SoftDeleteOrders(ctx, tenantID, confirmed, now); err != nil {
		report.Errorf("reconcile orders: soft delete: %v", err)
		return
	}
	report.Orders.Deleted += len(confirmed)
}

// reconcileShipments applies the same detect-and-verify pass to
// shipments that were not already cascaded by an order deletion.
func reconcileShipments(
	ctx context.Context,
	store ports.Store,
	provider ports.UpstreamProvider,
	pacer *Pacer,
	tenantID int64,
	window domain.SyncWindow,
	seenShipmentIDs map[int64]struct{},
	now time.Time,
	report *domain.TenantReport,
) {
	if window.Mode != domain.WindowCreated {
		return
	}

	local, err := store.ActiveShipmentsCreatedBetween(ctx, tenantID, window.Start, window.End)
	if err != nil {
		report.Errorf("reconcile shipments: load local window: %v", err)
		return
	}

	var confirmed []int64
	for _, shipment := range local {
		if !window.Contains(shipment.CreatedAt) {
			continue
		}
		if _, ok := seenShipmentIDs[shipment.UpstreamID]; ok {
			continue
		}

		if err := pacer.Wait(ctx); err != nil {
			report.Errorf("reconcile shipments: %v", err)
			break
		}

		_, err := provider.Shipment(ctx, shipment.UpstreamID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			confirmed = append(confirmed, shipment.ID)
		case err != nil:
			continue
		}
	}

	if len(confirmed) == 0 {
		return
	}
	if err := store.SoftDeleteShipments(ctx, tenantID, confirmed, now); err != nil {
		report.Errorf("reconcile shipments: soft delete: %v", err)
		return
	}
	report.Shipments.Deleted += len(confirmed)
}
