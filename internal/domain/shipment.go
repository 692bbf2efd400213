package domain

import (
	"math"
	"time"
)

// A fulfillment unit with a globally unique upstream id. Milestone
// timestamps are mutable and may arrive partially or out of order;
// transit time is derived only once both InTransitAt and DeliveredAt
// are present.
type Shipment struct {
	ID              int64
	TenantID        int64
	OrderID         int64
	UpstreamID      int64
	OrderUpstreamID string
	Status          string
	Carrier         string
	TrackingNumber  string

	OriginCountry      string
	DestinationCountry string

	LengthIn       float64
	WidthIn        float64
	HeightIn       float64
	ActualWeightOz float64
	BillableOz     float64

	CreatedAt         time.Time
	PickedAt          *time.Time
	PackedAt          *time.Time
	LabeledAt         *time.Time
	LabelValidatedAt  *time.Time
	InTransitAt       *time.Time
	OutForDeliveryAt  *time.Time
	DeliveredAt       *time.Time
	DeliveryFailedAt  *time.Time
	TransitTimeDays   *float64
	TimelineCheckedAt *time.Time

	DeletedAt      *time.Time
	LastVerifiedAt *time.Time
}

// A shipped line item, keyed by (shipment, product id). Quantity may
// be absent upstream and backfilled from the matching order item.
type ShipmentItem struct {
	ID         int64
	ShipmentID int64
	TenantID   int64
	ProductID  int64
	SKU        string
	Name       string
	Quantity   int
}

// Packaging detail for a shipment, keyed by (shipment, carton id).
type Carton struct {
	ID             int64
	ShipmentID     int64
	TenantID       int64
	UpstreamID     string
	Type           string
	LengthIn       float64
	WidthIn        float64
	HeightIn       float64
	ActualWeightOz float64
}

// TransitTimeDays returns delivered minus in-transit in days, one
// decimal, or nil when either timestamp is missing or the span is
// negative.
func TransitTimeDays(inTransit, delivered *time.Time) *float64 {
	if inTransit == nil || delivered == nil {
		return nil
	}
	span := delivered.Sub(*inTransit)
	if span < 0 {
		return nil
	}
	days := math.Round(span.Hours()/24*10) / 10
	return &days
}
