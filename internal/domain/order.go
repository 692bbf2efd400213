package domain

import "time"

// An upstream order, uniquely keyed by (TenantID, UpstreamID).
// Upsert by that key never creates duplicates; DeletedAt is set only
// by reconciliation and cleared only by a later successful upsert.
type Order struct {
	ID             int64
	TenantID       int64
	UpstreamID     string
	ReferenceID    string
	Status         string
	Type           string
	Channel        string
	PurchaseDate   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	LastVerifiedAt *time.Time
}

// A line item at order level, keyed by (order, product id).
// Order items are the fallback source of truth for shipment item
// quantities (archived shipments often report none).
type OrderItem struct {
	ID        int64
	OrderID   int64
	TenantID  int64
	ProductID int64
	SKU       string
	Name      string
	Quantity  int
	UnitPrice float64
}
