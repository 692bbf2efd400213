package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

const pageLimit = 250

type shipmentItemPayload struct {
	ProductID int64  `json:"inventory_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  *int   `json:"quantity"`
}

type cartonPayload struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Length float64 `json:"length_in"`
	Width  float64 `json:"width_in"`
	Height float64 `json:"height_in"`
	Weight float64 `json:"weight_oz"`
}

type shipmentPayload struct {
	ID             int64                 `json:"id"`
	Status         string                `json:"status"`
	Carrier        string                `json:"carrier"`
	TrackingNumber string                `json:"tracking_number"`
	Origin         string                `json:"origin_country"`
	Destination    string                `json:"destination_country"`
	Length         float64               `json:"length_in"`
	Width          float64               `json:"width_in"`
	Height         float64               `json:"height_in"`
	Weight         float64               `json:"weight_oz"`
	CreatedAt      time.Time             `json:"created_date"`
	Items          []shipmentItemPayload `json:"products"`
	Cartons        []cartonPayload       `json:"cartons"`
}

type orderItemPayload struct {
	ProductID int64   `json:"inventory_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type orderPayload struct {
	ID           string             `json:"id"`
	ReferenceID  string             `json:"reference_id"`
	Status       string             `json:"status"`
	Type         string             `json:"type"`
	Channel      string             `json:"channel_name"`
	PurchaseDate *time.Time         `json:"purchase_date"`
	CreatedAt    time.Time          `json:"created_date"`
	Items        []orderItemPayload `json:"products"`
	Shipments    []shipmentPayload  `json:"shipments"`
}

// windowQuery applies the window's date filter under the names the
// provider expects for each mode.
func windowQuery(q url.Values, w domain.SyncWindow) {
	start := w.Start.UTC().Format(time.RFC3339)
	end := w.End.UTC().Format(time.RFC3339)
	if w.Mode == domain.WindowModified {
		q.Set("LastUpdateStartDate", start)
		q.Set("LastUpdateEndDate", end)
		return
	}
	q.Set("StartDate", start)
	q.Set("EndDate", end)
}

// pageQuery applies offset pagination; cursor is the page number.
func pageQuery(q url.Values, cursor string) (int, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return 0, fmt.Errorf("parse page cursor %q: %w", cursor, err)
		}
		page = n
	}
	q.Set("Page", strconv.Itoa(page))
	q.Set("Limit", strconv.Itoa(pageLimit))
	return page, nil
}

// nextOffsetCursor returns the cursor for the following page, or ""
// when the current page was short (last page).
func nextOffsetCursor(page, got int) string {
	if got < pageLimit {
		return ""
	}
	return strconv.Itoa(page + 1)
}

// Orders lists one page of orders (shipments embedded) inside the
// window.
func (c *Client) Orders(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamOrder], error) {
	q := url.Values{}
	page, err := pageQuery(q, cursor)
	if err != nil {
		return ports.Page[ports.UpstreamOrder]{}, fmt.Errorf("list orders: %w", err)
	}
	windowQuery(q, w)

	var decoded []orderPayload
	if err := c.getJSON(ctx, c.baseURL+"/1.0/order?"+q.Encode(), &decoded); err != nil {
		return ports.Page[ports.UpstreamOrder]{}, err
	}

	records := make([]ports.UpstreamOrder, 0, len(decoded))
	for _, o := range decoded {
		records = append(records, mapOrder(o))
	}
	return ports.Page[ports.UpstreamOrder]{
		Records:    records,
		NextCursor: nextOffsetCursor(page, len(decoded)),
	}, nil
}

// Order fetches one order by upstream id. Doubles as the existence
// check used by reconciliation: ErrNotFound confirms deletion.
func (c *Client) Order(ctx context.Context, orderID string) (ports.UpstreamOrder, error) {
	var decoded orderPayload
	if err := c.getJSON(ctx, c.baseURL+"/1.0/order/"+url.PathEscape(orderID), &decoded); err != nil {
		return ports.UpstreamOrder{}, err
	}
	return mapOrder(decoded), nil
}

// Shipment fetches one shipment by upstream id. Used for existence
// checks and the corrective status fetch after a labeled event.
func (c *Client) Shipment(ctx context.Context, shipmentID int64) (ports.UpstreamShipment, error) {
	var decoded shipmentPayload
	if err := c.getJSON(ctx, fmt.Sprintf("%s/1.0/shipment/%d", c.baseURL, shipmentID), &decoded); err != nil {
		return ports.UpstreamShipment{}, err
	}
	return mapShipment(decoded), nil
}

func mapOrder(o orderPayload) ports.UpstreamOrder {
	out := ports.UpstreamOrder{
		ID:           o.ID,
		ReferenceID:  o.ReferenceID,
		Status:       o.Status,
		Type:         o.Type,
		Channel:      o.Channel,
		PurchaseDate: o.PurchaseDate,
		CreatedAt:    o.CreatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, ports.UpstreamOrderItem{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	for _, s := range o.Shipments {
		out.Shipments = append(out.Shipments, mapShipment(s))
	}
	return out
}

func mapShipment(s shipmentPayload) ports.UpstreamShipment {
	out := ports.UpstreamShipment{
		ID:                 s.ID,
		Status:             s.Status,
		Carrier:            s.Carrier,
		TrackingNumber:     s.TrackingNumber,
		OriginCountry:      s.Origin,
		DestinationCountry: s.Destination,
		LengthIn:           s.Length,
		WidthIn:            s.Width,
		HeightIn:           s.Height,
		ActualWeightOz:     s.Weight,
		CreatedAt:          s.CreatedAt,
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, ports.UpstreamShipmentItem{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
		})
	}
	for _, ca := range s.Cartons {
		out.Cartons = append(out.Cartons, ports.UpstreamCarton{
			ID:             ca.ID,
			Type:           ca.Type,
			LengthIn:       ca.Length,
			WidthIn:        ca.Width,
			HeightIn:       ca.Height,
			ActualWeightOz: ca.Weight,
		})
	}
	return out
}
