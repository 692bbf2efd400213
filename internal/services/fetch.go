package services

import (
	"context"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Upper bound on pages per fetch. Together with the non-advancing
// cursor rule this keeps every invocation finite even against a
// misbehaving upstream.
const maxFetchPages = 200

// fetchAll walks a paginated listing into a deduplicated record
// slice. key extracts the upstream id used for cross-page dedup: if
// a page yields zero unseen ids the upstream cursor is repeating
// itself and pagination terminates immediately.
//
// On error the records collected so far are returned alongside it;
// the caller decides what survives.
func fetchAll[T any, K comparable](
	ctx context.Context,
	pacer *Pacer,
	list func(ctx context.Context, cursor string) (ports.Page[T], error),
	key func(T) K,
) ([]T, error) {
	seen := make(map[K]struct{})
	var records []T

	cursor := ""
	for page := 0; page < maxFetchPages; page++ {
		if err := pacer.Wait(ctx); err != nil {
			return records, err
		}

		result, err := list(ctx, cursor)
		if err != nil {
			return records, err
		}

		unseen := 0
		for _, rec := range result.Records {
			k := key(rec)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			records = append(records, rec)
			unseen++
		}

		// Cursor-repeat protection: a full page of already-seen
		// ids means the upstream cursor is not advancing.
		if unseen == 0 {
			return records, nil
		}
		if result.NextCursor == "" {
			return records, nil
		}
		cursor = result.NextCursor
	}
	return records, nil
}

// fetchOrders pulls all orders in the window.
func fetchOrders(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, w domain.SyncWindow) ([]ports.UpstreamOrder, error) {
	return fetchAll(ctx, pacer,
		func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamOrder], error) {
			return provider.Orders(ctx, w, cursor)
		},
		func(o ports.UpstreamOrder) string { return o.ID },
	)
}

// fetchReturns pulls all returns in the window.
func fetchReturns(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, w domain.SyncWindow) ([]ports.UpstreamReturn, error) {
	return fetchAll(ctx, pacer,
		func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamReturn], error) {
			return provider.Returns(ctx, w, cursor)
		},
		func(r ports.UpstreamReturn) int64 { return r.ID },
	)
}

// fetchReceivingOrders pulls all receiving orders in the window.
func fetchReceivingOrders(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, w domain.SyncWindow) ([]ports.UpstreamReceivingOrder, error) {
	return fetchAll(ctx, pacer,
		func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamReceivingOrder], error) {
			return provider.ReceivingOrders(ctx, w, cursor)
		},
		func(r ports.UpstreamReceivingOrder) int64 { return r.ID },
	)
}

// fetchProducts pulls the tenant's full product catalog.
func fetchProducts(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer) ([]ports.UpstreamProduct, error) {
	return fetchAll(ctx, pacer,
		func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamProduct], error) {
			return provider.Products(ctx, cursor)
		},
		func(p ports.UpstreamProduct) int64 { return p.InventoryID },
	)
}

// fetchTransactions pulls all transactions in the window.
func fetchTransactions(ctx context.Context, provider ports.UpstreamProvider, pacer *Pacer, w domain.SyncWindow) ([]ports.UpstreamTransaction, error) {
	return fetchAll(ctx, pacer,
		func(ctx context.Context, cursor string) (ports.Page[ports.UpstreamTransaction], error) {
			return provider.Transactions(ctx, w, cursor)
		},
		func(t ports.UpstreamTransaction) string { return t.ID },
	)
}
