package domain

import "time"

// Reference types carried by upstream financial transactions. The
// tag identifies what kind of entity the amount is billed against and
// selects the attribution strategy branch.
const (
	RefShipment       = "Shipment"
	RefFacility       = "FC"
	RefReturn         = "Return"
	RefDefault        = "Default"
	RefTicket         = "Ticket"
	RefReceivingOrder = "WRO"
)

// A financial event from the provider. ClientID is nil until
// attribution resolves tenant ownership; once set it is never cleared
// by a re-run (monotonic).
type Transaction struct {
	ID             int64
	UpstreamID     string
	ReferenceType  string
	ReferenceID    string
	ClientID       *int64
	FeeType        string
	Amount         float64
	Currency       string
	Comment        string
	TrackingNumber string
	// Alternate inventory id some transactions carry in metadata,
	// used when the facility reference string fails to parse.
	MetaInventoryID string
	TransactedAt    time.Time
	CreatedAt       time.Time
}

// Attributed reports whether tenant ownership has been resolved.
func (t *Transaction) Attributed() bool {
	return t.ClientID != nil
}

// SyncCheckpoint is a per-tenant, per-mode watermark preventing
// redundant polling across invocations.
type SyncCheckpoint struct {
	TenantID          int64
	Mode              WindowMode
	LastSyncedAt      time.Time
	LastVerifiedAt    *time.Time
	TimelineCheckedAt *time.Time
}
