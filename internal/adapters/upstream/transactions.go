package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

type transactionQuery struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Cursor    string    `json:"cursor,omitempty"`
	Limit     int       `json:"limit"`
}

type transactionPayload struct {
	ID              string    `json:"transaction_id"`
	ReferenceType   string    `json:"reference_type"`
	ReferenceID     string    `json:"reference_id"`
	FeeType         string    `json:"fee_type"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Comment         string    `json:"comment"`
	TrackingNumber  string    `json:"tracking_number"`
	MetaInventoryID string    `json:"inventory_id"`
	TransactedAt    time.Time `json:"transaction_date"`
}

type transactionPage struct {
	Transactions []transactionPayload `json:"transactions"`
	NextCursor   string               `json:"next_cursor"`
}

// Transactions queries one page of the tenant's financial ledger.
// This is the one endpoint that gets a single in-process
// wait-and-retry on 429; every other 429 in the client propagates as
// a skip signal.
func (c *Client) Transactions(ctx context.Context, w domain.SyncWindow, cursor string) (ports.Page[ports.UpstreamTransaction], error) {
	body, err := json.Marshal(transactionQuery{
		StartDate: w.Start.UTC(),
		EndDate:   w.End.UTC(),
		Cursor:    cursor,
		Limit:     pageLimit,
	})
	if err != nil {
		return ports.Page[ports.UpstreamTransaction]{}, fmt.Errorf("query transactions: marshal body: %w", err)
	}

	decoded, err := c.postTransactionQuery(ctx, body)
	if err != nil && errors.Is(err, ports.ErrRateLimited) {
		wait := 2 * time.Second
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}
		if wait > c.maxRetryWait {
			wait = c.maxRetryWait
		}
		if werr := waitWithContext(ctx, wait); werr != nil {
			return ports.Page[ports.UpstreamTransaction]{}, werr
		}
		decoded, err = c.postTransactionQuery(ctx, body)
	}
	if err != nil {
		return ports.Page[ports.UpstreamTransaction]{}, err
	}

	records := make([]ports.UpstreamTransaction, 0, len(decoded.Transactions))
	for _, t := range decoded.Transactions {
		records = append(records, ports.UpstreamTransaction{
			ID:              t.ID,
			ReferenceType:   t.ReferenceType,
			ReferenceID:     t.ReferenceID,
			FeeType:         t.FeeType,
			Amount:          t.Amount,
			Currency:        t.Currency,
			Comment:         t.Comment,
			TrackingNumber:  t.TrackingNumber,
			MetaInventoryID: t.MetaInventoryID,
			TransactedAt:    t.TransactedAt,
		})
	}
	return ports.Page[ports.UpstreamTransaction]{
		Records:    records,
		NextCursor: decoded.NextCursor,
	}, nil
}

func (c *Client) postTransactionQuery(ctx context.Context, body []byte) (transactionPage, error) {
	var decoded transactionPage
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, c.baseURL+"/1.0/ledger/query", bytes.NewReader(body))
	})
	if err != nil {
		return decoded, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return decoded, fmt.Errorf("decode transaction query response: %w", err)
	}
	return decoded, nil
}
