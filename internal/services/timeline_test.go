package services

import (
	"context"
	"testing"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

func TestTimelinePollAppliesMilestones(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.shipments[5001] = &domain.Shipment{
		ID: 1, TenantID: 1, UpstreamID: 5001,
		Status:    "labeled",
		CreatedAt: now.Add(-24 * time.Hour),
	}

	inTransit := now.Add(-20 * time.Hour)
	delivered := inTransit.Add(36 * time.Hour)
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			return []ports.TimelineEvent{
				{Name: "picked", Timestamp: now.Add(-23 * time.Hour)},
				{Name: "in_transit", Timestamp: inTransit},
				{Name: "delivered", Timestamp: delivered},
				{Name: "SomethingUnrecognized", Timestamp: now},
			}, nil
		},
	}

	watermarks := newFakeWatermarks()
	poller := NewTimelinePoller(store, watermarks, TimelinePollerConfig{})

	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	s := store.shipments[5001]
	if s.Status != "delivered" {
		t.Fatalf("status = %q, want delivered", s.Status)
	}
	if s.InTransitAt == nil || !s.InTransitAt.Equal(inTransit) {
		t.Fatalf("in transit at = %v", s.InTransitAt)
	}
	if s.TransitTimeDays == nil || *s.TransitTimeDays != 1.5 {
		t.Fatalf("transit days = %v, want 1.5", s.TransitTimeDays)
	}
	if report.TimelinePolled != 1 {
		t.Fatalf("polled = %d, want 1", report.TimelinePolled)
	}
	if len(watermarks.marked) != 1 || watermarks.marked[0] != 5001 {
		t.Fatalf("watermarks marked = %v, want [5001]", watermarks.marked)
	}
}

func TestTimelinePollTierGating(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	// Fresh shipment checked 5 minutes ago: inside the 15 minute
	// gate, skipped. Older shipment checked 3 hours ago: outside the
	// 2 hour gate, polled.
	store.shipments[1] = &domain.Shipment{ID: 1, TenantID: 1, UpstreamID: 1, CreatedAt: now.Add(-time.Hour)}
	store.shipments[2] = &domain.Shipment{ID: 2, TenantID: 1, UpstreamID: 2, CreatedAt: now.Add(-7 * 24 * time.Hour)}

	watermarks := newFakeWatermarks()
	watermarks.checked[1] = now.Add(-5 * time.Minute)
	watermarks.checked[2] = now.Add(-3 * time.Hour)

	polled := map[int64]bool{}
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			polled[shipmentID] = true
			return nil, nil
		},
	}

	poller := NewTimelinePoller(store, watermarks, TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if polled[1] {
		t.Fatal("fresh shipment inside its re-check gate must be skipped")
	}
	if !polled[2] {
		t.Fatal("older shipment outside its re-check gate must be polled")
	}
}

func TestTimelinePollCapacitySplit(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	// 10 fresh and 10 older candidates with capacity 10: the 70/30
	// split polls 7 fresh and 3 older.
	for i := int64(1); i <= 10; i++ {
		store.shipments[i] = &domain.Shipment{ID: i, TenantID: 1, UpstreamID: i, CreatedAt: now.Add(-time.Hour)}
	}
	for i := int64(11); i <= 20; i++ {
		store.shipments[i] = &domain.Shipment{ID: i, TenantID: 1, UpstreamID: i, CreatedAt: now.Add(-7 * 24 * time.Hour)}
	}

	var fresh, older int
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			if shipmentID <= 10 {
				fresh++
			} else {
				older++
			}
			return nil, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{Capacity: 10})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if fresh != 7 || older != 3 {
		t.Fatalf("polled fresh=%d older=%d, want 7/3", fresh, older)
	}
}

func TestTimelinePollReallocatesFreshLeftover(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	// Only 2 fresh candidates; their unused share of capacity 10
	// goes to the older tier.
	for i := int64(1); i <= 2; i++ {
		store.shipments[i] = &domain.Shipment{ID: i, TenantID: 1, UpstreamID: i, CreatedAt: now.Add(-time.Hour)}
	}
	for i := int64(11); i <= 30; i++ {
		store.shipments[i] = &domain.Shipment{ID: i, TenantID: 1, UpstreamID: i, CreatedAt: now.Add(-7 * 24 * time.Hour)}
	}

	var fresh, older int
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			if shipmentID <= 10 {
				fresh++
			} else {
				older++
			}
			return nil, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{Capacity: 10})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if fresh != 2 || older != 8 {
		t.Fatalf("polled fresh=%d older=%d, want 2/8", fresh, older)
	}
}

func TestTimelinePollRateLimitSkips(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.shipments[1] = &domain.Shipment{ID: 1, TenantID: 1, UpstreamID: 1, CreatedAt: now.Add(-time.Hour)}
	store.shipments[2] = &domain.Shipment{ID: 2, TenantID: 1, UpstreamID: 2, CreatedAt: now.Add(-time.Hour)}

	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			if shipmentID == 1 {
				return nil, ports.ErrRateLimited
			}
			return nil, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if report.TimelineSkipped != 1 {
		t.Fatalf("skipped = %d, want 1", report.TimelineSkipped)
	}
	if report.TimelinePolled != 1 {
		t.Fatalf("polled = %d, want 1", report.TimelinePolled)
	}
	if report.Failed() {
		t.Fatalf("a 429 is not an error: %v", report.Errors)
	}
}

func TestTimelinePollCorrectiveFetch(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// Cached status predates labeling; a labeled event must trigger
	// one supplementary point fetch for status and tracking.
	store.shipments[5001] = &domain.Shipment{
		ID: 1, TenantID: 1, UpstreamID: 5001,
		Status:    "Processing",
		CreatedAt: now.Add(-time.Hour),
	}

	fetched := 0
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			return []ports.TimelineEvent{{Name: "labeled", Timestamp: now.Add(-30 * time.Minute)}}, nil
		},
		shipment: func(ctx context.Context, shipmentID int64) (ports.UpstreamShipment, error) {
			fetched++
			return ports.UpstreamShipment{ID: shipmentID, Status: "LabeledForShipment", TrackingNumber: "1Z999"}, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if fetched != 1 {
		t.Fatalf("corrective fetches = %d, want 1", fetched)
	}
	s := store.shipments[5001]
	if s.Status != "LabeledForShipment" {
		t.Fatalf("status = %q, want the refreshed upstream status", s.Status)
	}
	if s.TrackingNumber != "1Z999" {
		t.Fatalf("tracking = %q, want 1Z999", s.TrackingNumber)
	}
}

func TestTimelinePollNoCorrectiveFetchPastLabel(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.shipments[5001] = &domain.Shipment{
		ID: 1, TenantID: 1, UpstreamID: 5001,
		Status:    "in_transit",
		CreatedAt: now.Add(-time.Hour),
	}

	fetched := 0
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			return []ports.TimelineEvent{{Name: "labeled", Timestamp: now.Add(-30 * time.Minute)}}, nil
		},
		shipment: func(ctx context.Context, shipmentID int64) (ports.UpstreamShipment, error) {
			fetched++
			return ports.UpstreamShipment{}, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if fetched != 0 {
		t.Fatalf("corrective fetches = %d, want 0 when already past label", fetched)
	}
}

func TestTimelinePollFailedAttemptThenDelivered(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.shipments[5001] = &domain.Shipment{
		ID: 1, TenantID: 1, UpstreamID: 5001,
		Status:    "out_for_delivery",
		CreatedAt: now.Add(-2 * 24 * time.Hour),
	}

	failed := now.Add(-30 * time.Hour)
	delivered := now.Add(-2 * time.Hour)
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			return []ports.TimelineEvent{
				{Name: "delivery_attempt_failed", Timestamp: failed},
				{Name: "delivered", Timestamp: delivered},
			}, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	s := store.shipments[5001]
	if s.Status != "delivered" {
		t.Fatalf("status = %q, want delivered after a later successful delivery", s.Status)
	}
	if s.DeliveryFailedAt == nil || !s.DeliveryFailedAt.Equal(failed) {
		t.Fatalf("failed attempt timestamp = %v, want %v", s.DeliveryFailedAt, failed)
	}
	if s.DeliveredAt == nil || !s.DeliveredAt.Equal(delivered) {
		t.Fatalf("delivered timestamp = %v, want %v", s.DeliveredAt, delivered)
	}
}

func TestTimelinePollSkipsTerminalStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// A corrective point fetch marked it delivered before the
	// delivered_at column caught up; nothing is left to poll.
	store.shipments[1] = &domain.Shipment{
		ID: 1, TenantID: 1, UpstreamID: 1,
		Status:    "delivered",
		CreatedAt: now.Add(-time.Hour),
	}

	polled := 0
	provider := &fakeProvider{
		timeline: func(ctx context.Context, shipmentID int64) ([]ports.TimelineEvent, error) {
			polled++
			return nil, nil
		},
	}

	poller := NewTimelinePoller(store, newFakeWatermarks(), TimelinePollerConfig{})
	var report domain.TenantReport
	poller.Poll(context.Background(), provider, NewPacer(0), 1, now, &report)

	if polled != 0 {
		t.Fatalf("polled = %d, terminal-status shipment must be skipped", polled)
	}
}
