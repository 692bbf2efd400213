package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/ports"
)

// Upsert transactions keyed by upstream id. client_id is never part
// of the conflict update: attribution is the only writer and only
// ever fills nulls, keeping ownership monotonic.
func (s *SQLStore) UpsertTransactions(ctx context.Context, txs []*domain.Transaction) ports.BatchResult {
	var result ports.BatchResult
	for i, batch := range chunk(txs) {
		query := `
		INSERT INTO transactions (
			upstream_id, reference_type, reference_id, fee_type, amount,
			currency, comment, tracking_number, meta_inventory_id, transacted_at, created_at
		) VALUES ` + placeholders(11, len(batch)) + `
		ON CONFLICT (upstream_id) DO UPDATE SET
			reference_type = excluded.reference_type,
			reference_id = excluded.reference_id,
			fee_type = excluded.fee_type,
			amount = excluded.amount,
			currency = excluded.currency,
			comment = excluded.comment,
			meta_inventory_id = excluded.meta_inventory_id,
			transacted_at = excluded.transacted_at;
		`

		args := make([]any, 0, len(batch)*11)
		for _, t := range batch {
			args = append(args,
				t.UpstreamID, t.ReferenceType, t.ReferenceID, t.FeeType, t.Amount,
				t.Currency, t.Comment, t.TrackingNumber, t.MetaInventoryID, t.TransactedAt.UTC(), t.CreatedAt.UTC(),
			)
		}

		if _, err := s.DB.ExecContext(ctx, s.bind(query), args...); err != nil {
			result.Errors = append(result.Errors, batchErr("upsert transactions", i+1, err))
			continue
		}
		result.Upserted += len(batch)
	}
	return result
}

const transactionColumns = `
	id, upstream_id, reference_type, reference_id, client_id, fee_type,
	amount, currency, comment, tracking_number, meta_inventory_id,
	transacted_at, created_at`

func scanTransaction(rows *sql.Rows) (*domain.Transaction, error) {
	var t domain.Transaction
	var clientID sql.NullInt64
	err := rows.Scan(
		&t.ID, &t.UpstreamID, &t.ReferenceType, &t.ReferenceID, &clientID, &t.FeeType,
		&t.Amount, &t.Currency, &t.Comment, &t.TrackingNumber, &t.MetaInventoryID,
		&t.TransactedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		id := clientID.Int64
		t.ClientID = &id
	}
	return &t, nil
}

// Transactions still lacking tenant ownership, oldest first.
func (s *SQLStore) UnattributedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
	SELECT ` + transactionColumns + `
	FROM transactions
	WHERE client_id IS NULL
	ORDER BY transacted_at
	LIMIT ?;
	`
	rows, err := s.DB.QueryContext(ctx, s.bind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("unattributed transactions: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("unattributed transactions: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unattributed transactions: iterate: %w", err)
	}
	return out, nil
}

// Set client_id for the given transaction ids, only where currently
// null. Returns how many rows actually changed.
func (s *SQLStore) AttributeTransactions(ctx context.Context, owners map[int64]int64) (int, error) {
	if len(owners) == 0 {
		return 0, nil
	}

	query := s.bind(`UPDATE transactions SET client_id = ? WHERE id = ? AND client_id IS NULL;`)
	changed := 0
	for txID, tenantID := range owners {
		res, err := s.DB.ExecContext(ctx, query, tenantID, txID)
		if err != nil {
			return changed, fmt.Errorf("attribute transactions: tx %d: %w", txID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			changed += int(n)
		}
	}
	return changed, nil
}

// Backfill carrier tracking ids on transactions that lack one.
func (s *SQLStore) SetTransactionTracking(ctx context.Context, tracking map[int64]string) error {
	query := s.bind(`UPDATE transactions SET tracking_number = ? WHERE id = ? AND tracking_number = '';`)
	for txID, number := range tracking {
		if number == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, query, number, txID); err != nil {
			return fmt.Errorf("set transaction tracking: tx %d: %w", txID, err)
		}
	}
	return nil
}
