package services

import (
	"regexp"
	"strconv"
	"strings"

	"fulfillment-sync-service/internal/domain"
)

// AttributionStrategy resolves tenant ownership for one transaction
// against the injected indexes. Strategies are tried in order until
// one matches; each guards its own reference type, so the slice
// order is the cascade priority.
type AttributionStrategy interface {
	Name() string
	TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool)
}

// DefaultStrategies returns the cascade in priority order.
func DefaultStrategies(routes *FeeRoutes) []AttributionStrategy {
	return []AttributionStrategy{
		shipmentRefStrategy{},
		facilityRefStrategy{},
		returnRefStrategy{},
		defaultRefStrategy{routes: routes},
		ticketRefStrategy{},
		receivingRefStrategy{},
	}
}

// Shipment reference: direct lookup in the shipment->tenant index.
type shipmentRefStrategy struct{}

func (shipmentRefStrategy) Name() string { return "shipment" }

func (shipmentRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefShipment {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64)
	if err != nil {
		return 0, false
	}
	ref, ok := idx.Shipments[id]
	if !ok {
		return 0, false
	}
	return ref.TenantID, true
}

// Facility/storage reference: the reference string encodes a
// facility-inventory-locationtype composite key, e.g. "12-98765-Bin".
// The middle component is the inventory id, resolved through the
// inventory->tenant index; if parsing fails, fall back to the
// alternate inventory id carried in the transaction metadata.
type facilityRefStrategy struct{}

func (facilityRefStrategy) Name() string { return "facility" }

func (facilityRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefFacility {
		return 0, false
	}
	if id, ok := parseFacilityInventoryID(tx.ReferenceID); ok {
		if tenantID, ok := idx.Inventory[id]; ok {
			return tenantID, true
		}
		return 0, false
	}
	if meta := strings.TrimSpace(tx.MetaInventoryID); meta != "" {
		if id, err := strconv.ParseInt(meta, 10, 64); err == nil {
			if tenantID, ok := idx.Inventory[id]; ok {
				return tenantID, true
			}
		}
	}
	return 0, false
}

func parseFacilityInventoryID(ref string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(ref), "-")
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

var commentOrderPattern = regexp.MustCompile(`(?i)order[\s#:.]{0,8}([0-9A-Za-z\-]+)`)

// Return reference: lookup in the return->tenant index; when the
// return is unknown, parse the free-text comment for an embedded
// order number and resolve through the order->tenant index.
type returnRefStrategy struct{}

func (returnRefStrategy) Name() string { return "return" }

func (returnRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefReturn {
		return 0, false
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64); err == nil {
		if tenantID, ok := idx.Returns[id]; ok {
			return tenantID, true
		}
	}
	if m := commentOrderPattern.FindStringSubmatch(tx.Comment); m != nil {
		if tenantID, ok := idx.Orders[m[1]]; ok {
			return tenantID, true
		}
	}
	return 0, false
}

// Unscoped/"Default" reference: specific fee-type labels route
// unconditionally to fixed system tenants; a generic credit label
// cascades shipment -> return -> receiving-order indexes.
type defaultRefStrategy struct {
	routes *FeeRoutes
}

func (defaultRefStrategy) Name() string { return "default" }

func (s defaultRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefDefault {
		return 0, false
	}
	if s.routes != nil {
		if tenantID, ok := s.routes.Route(tx.FeeType); ok {
			return tenantID, true
		}
		if !s.routes.Credit(tx.FeeType) {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64)
	if err != nil {
		return 0, false
	}
	if ref, ok := idx.Shipments[id]; ok {
		return ref.TenantID, true
	}
	if tenantID, ok := idx.Returns[id]; ok {
		return tenantID, true
	}
	if tenantID, ok := idx.Receiving[id]; ok {
		return tenantID, true
	}
	return 0, false
}

var slashPattern = regexp.MustCompile(`([^/\s]+)/\S+`)

// Free-text ticket reference. The "<parent>/<fragment>" slash
// pattern runs first: ticket subjects collapse the tenant's display
// name into the parent segment ("AcmeEurope/INC-4431"), so the
// comparison ignores case and non-alphanumerics. That exact check
// has to precede the substring scan, which would mis-route any
// collapsed parent to a tenant whose name is its prefix
// ("AcmeEurope" contains "Acme"). Only when no parent matches are
// tenant display names substring-matched against the comment,
// longest names first so a longer name always beats one that is its
// prefix.
type ticketRefStrategy struct{}

func (ticketRefStrategy) Name() string { return "ticket" }

func (ticketRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefTicket {
		return 0, false
	}
	comment := strings.ToLower(tx.Comment)
	if comment == "" {
		return 0, false
	}
	if m := slashPattern.FindStringSubmatch(tx.Comment); m != nil {
		parent := collapseName(m[1])
		for _, tn := range idx.TenantNames {
			if parent == collapseName(tn.Name) {
				return tn.TenantID, true
			}
		}
	}
	for _, tn := range idx.TenantNames {
		if strings.Contains(comment, strings.ToLower(tn.Name)) {
			return tn.TenantID, true
		}
	}
	return 0, false
}

// collapseName lowercases and strips everything but letters and
// digits, aligning "Acme Europe" with "AcmeEurope" or "acme-europe".
func collapseName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Receiving-order reference: direct lookup in the receiving-order
// index.
type receivingRefStrategy struct{}

func (receivingRefStrategy) Name() string { return "receiving_order" }

func (receivingRefStrategy) TryAttribute(tx *domain.Transaction, idx *Indexes) (int64, bool) {
	if tx.ReferenceType != domain.RefReceivingOrder {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(tx.ReferenceID), 10, 64)
	if err != nil {
		return 0, false
	}
	tenantID, ok := idx.Receiving[id]
	if !ok {
		return 0, false
	}
	return tenantID, true
}
