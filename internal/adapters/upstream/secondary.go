package upstream

import (
	"context"
	"net/url"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

type returnPayload struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"original_order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"insert_date"`
}

type receivingPayload struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"insert_date"`
}

type productPayload struct {
	InventoryID int64  `json:"inventory_id"`
	SKU         string `json:"sku"`
}

// Returns lists one page of customer returns inside the window.
func (c *Client) Returns(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReturn], error) {
	q := url.Values{}
	page, err := pageQuery(q, cursor)
	if err != nil {
		return ports.Page[ports.UpstreamReturn]{}, err
	}
	windowQuery(q, w)

	var decoded []returnPayload
	if err := c.getJSON(ctx, c.baseURL+"/1.0/return?"+q.Encode(), &decoded); err != nil {
		return ports.Page[ports.UpstreamReturn]{}, err
	}

	records := make([]ports.UpstreamReturn, 0, len(decoded))
	for _, r := range decoded {
		records = append(records, ports.UpstreamReturn{
			ID:              r.ID,
			OrderUpstreamID: r.OrderID,
			Status:          r.Status,
			CreatedAt:       r.CreatedAt,
		})
	}
	return ports.Page[ports.UpstreamReturn]{
		Records:    records,
		NextCursor: nextOffsetCursor(page, len(decoded)),
	}, nil
}

// ReceivingOrders lists one page of warehouse receiving orders inside
// the window.
func (c *Client) ReceivingOrders(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamReceivingOrder], error) {
	q := url.Values{}
	page, err := pageQuery(q, cursor)
	if err != nil {
		return ports.Page[ports.UpstreamReceivingOrder]{}, err
	}
	windowQuery(q, w)

	var decoded []receivingPayload
	if err := c.getJSON(ctx, c.baseURL+"/2.0/receiving?"+q.Encode(), &decoded); err != nil {
		return ports.Page[ports.UpstreamReceivingOrder]{}, err
	}

	records := make([]ports.UpstreamReceivingOrder, 0, len(decoded))
	for _, r := range decoded {
		records = append(records, ports.UpstreamReceivingOrder{
			ID:        r.ID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	return ports.Page[ports.UpstreamReceivingOrder]{
		Records:    records,
		NextCursor: nextOffsetCursor(page, len(decoded)),
	}, nil
}

// Products lists one page of the tenant's product catalog, feeding
// the inventory->tenant attribution index.
func (c *Client) Products(ctx context.Context, cursor string) (ports.Page[ports.UpstreamProduct], error) {
	q := url.Values{}
	page, err := pageQuery(q, cursor)
	if err != nil {
		return ports.Page[ports.UpstreamProduct]{}, err
	}

	var decoded []productPayload
	if err := c.getJSON(ctx, c.baseURL+"/1.0/product?"+q.Encode(), &decoded); err != nil {
		return ports.Page[ports.UpstreamProduct]{}, err
	}

	records := make([]ports.UpstreamProduct, 0, len(decoded))
	for _, p := range decoded {
		records = append(records, ports.UpstreamProduct{
			InventoryID: p.InventoryID,
			SKU:         p.SKU,
		})
	}
	return ports.Page[ports.UpstreamProduct]{
		Records:    records,
		NextCursor: nextOffsetCursor(page, len(decoded)),
	}, nil
}
