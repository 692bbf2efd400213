package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-sync-service/internal/domain"
)

// Checkpoint loads one tenant's watermark for a sync mode, or nil
// when the tenant has never synced in that mode.
func (s *SQLStore) Checkpoint(ctx context.Context, tenantID int64, mode domain.WindowMode) (*domain.SyncCheckpoint, error) {
	query := `
	SELECT tenant_id, mode, last_synced_at, last_verified_at, timeline_checked_at
	FROM sync_checkpoints
	WHERE tenant_id = ? AND mode = ?;
	`
	var cp domain.SyncCheckpoint
	var verified, checked sql.NullTime
	err := s.DB.QueryRowContext(ctx, s.bind(query), tenantID, int(mode)).
		Scan(&cp.TenantID, &cp.Mode, &cp.LastSyncedAt, &verified, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	cp.LastVerifiedAt = scanNullTime(verified)
	cp.TimelineCheckedAt = scanNullTime(checked)
	return &cp, nil
}

// SaveCheckpoint upserts one tenant's watermark for a sync mode.
func (s *SQLStore) SaveCheckpoint(ctx context.Context, cp *domain.SyncCheckpoint) error {
	query := `
	INSERT INTO sync_checkpoints (tenant_id, mode, last_synced_at, last_verified_at, timeline_checked_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (tenant_id, mode) DO UPDATE SET
		last_synced_at = excluded.last_synced_at,
		last_verified_at = excluded.last_verified_at,
		timeline_checked_at = excluded.timeline_checked_at;
	`
	_, err := s.DB.ExecContext(ctx, s.bind(query),
		cp.TenantID, int(cp.Mode), cp.LastSyncedAt.UTC(), nullTime(cp.LastVerifiedAt), nullTime(cp.TimelineCheckedAt),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
