package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPollWatermarks stores per-shipment timeline-check watermarks
// in redis, keyed per tenant. Watermarks are hot and rewritten every
// poll pass, so they live here instead of the relational store; a
// lost key only causes one extra timeline fetch.
type RedisPollWatermarks struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPollWatermarks(client *redis.Client, ttl time.Duration) *RedisPollWatermarks {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &RedisPollWatermarks{client: client, ttl: ttl}
}

func watermarkKey(tenantID, shipmentID int64) string {
	return fmt.Sprintf("poll:%d:%d", tenantID, shipmentID)
}

// LastChecked returns the stored check time for each shipment that
// has one; missing keys are simply absent from the result.
func (r *RedisPollWatermarks) LastChecked(ctx context.Context, tenantID int64, shipmentIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(shipmentIDs))
	if len(shipmentIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(shipmentIDs))
	for i, id := range shipmentIDs {
		keys[i] = watermarkKey(tenantID, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("poll watermarks: mget: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out[shipmentIDs[i]] = time.Unix(unix, 0).UTC()
	}
	return out, nil
}

// MarkChecked records the check time for one shipment.
func (r *RedisPollWatermarks) MarkChecked(ctx context.Context, tenantID, shipmentID int64, at time.Time) error {
	key := watermarkKey(tenantID, shipmentID)
	if err := r.client.Set(ctx, key, strconv.FormatInt(at.UTC().Unix(), 10), r.ttl).Err(); err != nil {
		return fmt.Errorf("poll watermarks: set %s: %w", key, err)
	}
	return nil
}
