package services

import (
	"context"
	"errors"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// TimelinePollerConfig tunes the tiered selection policy. Zero
// values fall back to the defaults documented on each field.
type TimelinePollerConfig struct {
	// Shipments younger than FreshAge are the fresh tier
	// (default 3 days); older ones up to OlderAge are the older
	// tier (default 14 days). Beyond OlderAge nothing is polled.
	FreshAge time.Duration
	OlderAge time.Duration
	// Re-check gates per tier: fresh every 15 minutes, older every
	// 2 hours.
	FreshEvery time.Duration
	OlderEvery time.Duration
	// Per-tenant shipments polled per pass (default 200), split
	// roughly 70/30 between tiers. Unused fresh capacity is
	// reallocated to the older tier.
	Capacity int
}

func (c TimelinePollerConfig) withDefaults() TimelinePollerConfig {
	if c.FreshAge <= 0 {
		c.FreshAge = 3 * 24 * time.Hour
	}
	if c.OlderAge <= 0 {
		c.OlderAge = 14 * 24 * time.Hour
	}
	if c.FreshEvery <= 0 {
		c.FreshEvery = 15 * time.Minute
	}
	if c.OlderEvery <= 0 {
		c.OlderEvery = 2 * time.Hour
	}
	if c.Capacity <= 0 {
		c.Capacity = 200
	}
	return c
}

// TimelinePoller walks undelivered shipments' milestone events with
// tiered frequency. One poller loop runs per tenant, independently
// of other tenants; within a tenant requests are sequential behind
// the tenant's pacer.
type TimelinePoller struct {
	store      ports.Store
	watermarks ports.PollWatermarks
	config     TimelinePollerConfig
}

func NewTimelinePoller(store ports.Store, watermarks ports.PollWatermarks, config TimelinePollerConfig) *TimelinePoller {
	return &TimelinePoller{
		store:      store,
		watermarks: watermarks,
		config:     config.withDefaults(),
	}
}

// Poll selects eligible shipments for one tenant and refreshes their
// milestones. A 429 skips that shipment for this pass; other
// failures are counted but never abort the batch.
func (p *TimelinePoller) Poll(
	ctx context.Context,
	provider ports.UpstreamProvider,
	pacer *Pacer,
	tenantID int64,
	now time.Time,
	report *domain.TenantReport,
) {
	candidates, err := p.store.ShipmentsForTimelinePoll(ctx, tenantID, p.config.OlderAge, now)
	if err != nil {
		report.Errorf("timeline poll: load candidates: %v", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	selected := p.selectShipments(ctx, tenantID, candidates, now)
	for _, shipment := range selected {
		if err := pacer.Wait(ctx); err != nil {
			report.Errorf("timeline poll: %v", err)
			return
		}

		events, err := provider.Timeline(ctx, shipment.UpstreamID)
		if err != nil {
			if errors.Is(err, ports.ErrRateLimited) {
				report.TimelineSkipped++
				continue
			}
			report.Errorf("timeline poll: shipment %d: %v", shipment.UpstreamID, err)
			continue
		}

		p.applyEvents(ctx, provider, pacer, shipment, events, now, report)
		report.TimelinePolled++

		if err := p.watermarks.MarkChecked(ctx, tenantID, shipment.UpstreamID, now); err != nil {
			report.Errorf("timeline poll: watermark shipment %d: %v", shipment.UpstreamID, err)
		}
	}
}

// selectShipments partitions candidates into fresh and older tiers,
// drops any checked too recently for its tier, and applies the
// 70/30 capacity split with fresh leftovers reallocated to older.
func (p *TimelinePoller) selectShipments(ctx context.Context, tenantID int64, candidates []*domain.Shipment, now time.Time) []*domain.Shipment {
	ids := make([]int64, len(candidates))
	for i, s := range candidates {
		ids[i] = s.UpstreamID
	}
	checked, err := p.watermarks.LastChecked(ctx, tenantID, ids)
	if err != nil {
		// Fail open: an unreadable watermark store only costs
		// extra timeline fetches.
		checked = map[int64]time.Time{}
	}

	var fresh, older []*domain.Shipment
	for _, s := range candidates {
		// A corrective point fetch can set a terminal status before
		// delivered_at is populated; nothing more will happen to
		// such a shipment.
		if m, ok := domain.ParseMilestone(s.Status); ok && m.Terminal() {
			continue
		}

		age := now.Sub(s.CreatedAt)
		last, polled := checked[s.UpstreamID]
		if !polled && s.TimelineCheckedAt != nil {
			last = *s.TimelineCheckedAt
			polled = true
		}

		if age <= p.config.FreshAge {
			if polled && now.Sub(last) < p.config.FreshEvery {
				continue
			}
			fresh = append(fresh, s)
			continue
		}
		if polled && now.Sub(last) < p.config.OlderEvery {
			continue
		}
		older = append(older, s)
	}

	freshCap := p.config.Capacity * 7 / 10
	if len(fresh) < freshCap {
		freshCap = len(fresh)
	}
	olderCap := p.config.Capacity - freshCap
	if len(older) < olderCap {
		olderCap = len(older)
	}

	selected := make([]*domain.Shipment, 0, freshCap+olderCap)
	selected = append(selected, fresh[:freshCap]...)
	selected = append(selected, older[:olderCap]...)
	return selected
}

// applyEvents folds timeline events into the shipment's milestone
// timestamps, derives status and transit time, and writes the row
// back.
func (p *TimelinePoller) applyEvents(
	ctx context.Context,
	provider ports.UpstreamProvider,
	pacer *Pacer,
	shipment *domain.Shipment,
	events []ports.TimelineEvent,
	now time.Time,
	report *domain.TenantReport,
) {
	cachedStatus := shipment.Status

	// Status follows the chronologically latest event, not the
	// highest-ranked milestone: a failed attempt followed by a
	// successful delivery must end delivered.
	var latest domain.Milestone
	var latestAt time.Time
	sawLabeled := false
	for _, ev := range events {
		milestone, ok := domain.ParseMilestone(ev.Name)
		if !ok {
			continue
		}
		ts := ev.Timestamp
		switch milestone {
		case domain.MilestonePicked:
			shipment.PickedAt = &ts
		case domain.MilestonePacked:
			shipment.PackedAt = &ts
		case domain.MilestoneLabeled:
			shipment.LabeledAt = &ts
			sawLabeled = true
		case domain.MilestoneLabelValidated:
			shipment.LabelValidatedAt = &ts
		case domain.MilestoneInTransit:
			shipment.InTransitAt = &ts
		case domain.MilestoneOutForDelivery:
			shipment.OutForDeliveryAt = &ts
		case domain.MilestoneDelivered:
			shipment.DeliveredAt = &ts
		case domain.MilestoneDeliveryFailed:
			shipment.DeliveryFailedAt = &ts
		}
		if latestAt.IsZero() || !ts.Before(latestAt) {
			latest = milestone
			latestAt = ts
		}
	}

	if !latestAt.IsZero() && latest > domain.MilestoneCreated {
		shipment.Status = latest.String()
	}
	shipment.TransitTimeDays = domain.TransitTimeDays(shipment.InTransitAt, shipment.DeliveredAt)
	shipment.TimelineCheckedAt = &now

	// A labeled event while the cached status is still pre-label
	// means label generation raced the main order sync; one
	// supplementary point fetch resolves status and tracking.
	if sawLabeled && statusIsPreLabel(cachedStatus) {
		if err := pacer.Wait(ctx); err == nil {
			refreshed, err := provider.Shipment(ctx, shipment.UpstreamID)
			if err == nil {
				if refreshed.Status != "" {
					shipment.Status = refreshed.Status
				}
				if refreshed.TrackingNumber != "" {
					shipment.TrackingNumber = refreshed.TrackingNumber
				}
			}
		}
	}

	if err := p.store.UpdateShipmentTimeline(ctx, shipment); err != nil {
		report.Errorf("timeline poll: update shipment %d: %v", shipment.UpstreamID, err)
	}
}

func statusIsPreLabel(status string) bool {
	milestone, ok := domain.ParseMilestone(status)
	if !ok {
		// Upstream statuses outside the milestone vocabulary
		// ("Processing" and friends) predate labeling.
		return true
	}
	return milestone.PreLabel()
}
