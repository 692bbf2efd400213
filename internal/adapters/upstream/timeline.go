package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-sync-service/internal/ports"
)

type timelineEventPayload struct {
	LogTypeName string    `json:"log_type_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// Timeline fetches a shipment's milestone events, oldest first. A
// 404 means the shipment has no events yet and returns an empty
// slice, not an error.
func (c *Client) Timeline(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
	var decoded []timelineEventPayload
	url := fmt.Sprintf("%s/1.0/shipment/%d/timeline", c.baseURL, shipmentID)
	if err := c.getJSON(ctx, url, &decoded); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return []ports.TimelineEvent{}, nil
		}
		return nil, err
	}

	events := make([]ports.TimelineEvent, 0, len(decoded))
	for _, e := range decoded {
		events = append(events, ports.TimelineEvent{
			Name:      e.LogTypeName,
			Timestamp: e.Timestamp,
		})
	}
	return events, nil
}
