package ports

import (
	"context"
	"time"
)

// PollWatermarks records when each shipment's timeline was last
// checked, gating the tiered re-check intervals. Keys are scoped by
// tenant. A missing watermark means never checked.
type PollWatermarks interface {
	LastChecked(ctx context.Context, tenantID int64, shipmentIDs []int64) (map[int64]time.Time, error)
	MarkChecked(ctx context.Context, tenantID int64, shipmentID int64, at time.Time) error
}
