package domain

import "time"

// A customer return, used as an attribution lookup source.
type Return struct {
	ID         int64
	TenantID   int64
	UpstreamID int64
	OrderID    *int64
	Status     string
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// A warehouse receiving order (WRO), used as an attribution lookup
// source.
type ReceivingOrder struct {
	ID         int64
	TenantID   int64
	UpstreamID int64
	Status     string
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// InventoryMapping links an upstream inventory id to the tenant that
// owns the product, built from product-catalog data.
type InventoryMapping struct {
	InventoryID int64
	TenantID    int64
	SKU         string
}
