package ports

import (
	"context"
	"errors"
	"time"

	"fulfillment-sync-service/internal/domain"
)

// ErrRateLimited is returned when the upstream provider answers 429.
// Callers decide whether to skip the item or wait and retry; the
// adapter never retries these internally except for the bulk
// transaction query.
var ErrRateLimited = errors.New("upstream rate limited")

// ErrNotFound is returned on upstream 404. Existence checks and
// timeline fetches treat it positively (deleted / no events yet).
var ErrNotFound = errors.New("upstream not found")

// Raw upstream records as the provider returns them. Mapping into
// the internal schema is the upserter's job.
type UpstreamShipmentItem struct {
	ProductID int64
	SKU       string
	Name      string
	Quantity  *int
}

type UpstreamCarton struct {
	ID             string
	Type           string
	LengthIn       float64
	WidthIn        float64
	HeightIn       float64
	ActualWeightOz float64
}

type UpstreamShipment struct {
	ID                 int64
	Status             string
	Carrier            string
	TrackingNumber     string
	OriginCountry      string
	DestinationCountry string
	LengthIn           float64
	WidthIn            float64
	HeightIn           float64
	ActualWeightOz     float64
	CreatedAt          time.Time
	Items              []UpstreamShipmentItem
	Cartons            []UpstreamCarton
}

type UpstreamOrderItem struct {
	ProductID int64
	SKU       string
	Name      string
	Quantity  int
	UnitPrice float64
}

type UpstreamOrder struct {
	ID           string
	ReferenceID  string
	Status       string
	Type         string
	Channel      string
	PurchaseDate *time.Time
	CreatedAt    time.Time
	Items        []UpstreamOrderItem
	Shipments    []UpstreamShipment
}

type UpstreamReturn struct {
	ID              int64
	OrderUpstreamID string
	Status          string
	CreatedAt       time.Time
}

type UpstreamReceivingOrder struct {
	ID        int64
	Status    string
	CreatedAt time.Time
}

type UpstreamProduct struct {
	InventoryID int64
	SKU         string
}

type TimelineEvent struct {
	Name      string
	Timestamp time.Time
}

type UpstreamTransaction struct {
	ID              string
	ReferenceType   string
	ReferenceID     string
	FeeType         string
	Amount          float64
	Currency        string
	Comment         string
	TrackingNumber  string
	MetaInventoryID string
	TransactedAt    time.Time
}

// One page of a cursor- or offset-paginated listing. An empty
// NextCursor ends pagination.
type Page[T any] struct {
	Records    []T
	NextCursor string
}

// UpstreamProvider is the boundary to the fulfillment provider's API
// for one tenant's credentials. All methods honor context and
// surface 429 as ErrRateLimited and 404 as ErrNotFound.
type UpstreamProvider interface {
	// Paginated listings filtered by the window's date mode.
	Orders(ctx context.Context, w domain.SyncWindow, cursor string) (Page[UpstreamOrder], error)
	Returns(ctx context.Context, w domain.SyncWindow, cursor string) (Page[UpstreamReturn], error)
	ReceivingOrders(ctx context.Context, w domain.SyncWindow, cursor string) (Page[UpstreamReceivingOrder], error)
	// Product catalog, unfiltered; feeds the inventory->tenant index.
	Products(ctx context.Context, cursor string) (Page[UpstreamProduct], error)

	// Per-entity detail. Order and Shipment double as existence
	// checks: ErrNotFound confirms upstream deletion.
	Order(ctx context.Context, orderID string) (UpstreamOrder, error)
	Shipment(ctx context.Context, shipmentID int64) (UpstreamShipment, error)

	// Timeline returns the shipment's milestone events, oldest
	// first. ErrNotFound means no events yet, not an error.
	Timeline(ctx context.Context, shipmentID int64) ([]TimelineEvent, error)

	// Bulk transaction query. The adapter performs a single
	// in-process wait-and-retry on 429 for this endpoint only.
	Transactions(ctx context.Context, w domain.SyncWindow, cursor string) (Page[UpstreamTransaction], error)
}

// ProviderFactory builds a provider bound to one tenant's token.
type ProviderFactory func(creds *domain.TenantCredentials) UpstreamProvider
