package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Indexes are the explicit, per-run lookup tables the attributor
// consumes. They are constructed once and injected, never ambient,
// so tests can supply partial indexes to probe fail-open behavior.
type Indexes struct {
	// Upstream shipment id -> owner and tracking id.
	Shipments map[int64]ports.ShipmentRef
	// Upstream return id -> tenant.
	Returns map[int64]int64
	// Upstream receiving order id -> tenant.
	Receiving map[int64]int64
	// Upstream order id -> tenant.
	Orders map[string]int64
	// Inventory id -> tenant, from product-catalog data.
	Inventory map[int64]int64
	// Tenant display names sorted longest first, so a longer name
	// always wins over one that is its prefix.
	TenantNames []TenantName
}

// TenantName pairs a display name with its tenant for free-text
// matching.
type TenantName struct {
	Name     string
	TenantID int64
}

// BuildIndexes pages the store into fresh lookup tables.
func BuildIndexes(ctx context.Context, store ports.Store, tenants []*domain.Tenant) (*Indexes, error) {
	shipments, err := store.ShipmentOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	returns, err := store.ReturnOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	receiving, err := store.ReceivingOrderOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	orders, err := store.OrderOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	mappings, err := store.InventoryMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}

	inventory := make(map[int64]int64, len(mappings))
	for _, m := range mappings {
		inventory[m.InventoryID] = m.TenantID
	}

	return &Indexes{
		Shipments:   shipments,
		Returns:     returns,
		Receiving:   receiving,
		Orders:      orders,
		Inventory:   inventory,
		TenantNames: SortTenantNames(tenants),
	}, nil
}

// SortTenantNames orders tenant display names longest first to avoid
// partial-name false positives in free-text matching.
func SortTenantNames(tenants []*domain.Tenant) []TenantName {
	names := make([]TenantName, 0, len(tenants))
	for _, t := range tenants {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		names = append(names, TenantName{Name: name, TenantID: t.ID})
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i].Name) != len(names[j].Name) {
			return len(names[i].Name) > len(names[j].Name)
		}
		return names[i].Name < names[j].Name
	})
	return names
}
