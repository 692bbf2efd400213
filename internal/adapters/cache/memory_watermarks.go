package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryPollWatermarks is an in-process watermark store for local
// runs and tests.
type MemoryPollWatermarks struct {
	mu sync.Mutex
	m  map[int64]map[int64]time.Time
}

func NewMemoryPollWatermarks() *MemoryPollWatermarks {
	return &MemoryPollWatermarks{m: map[int64]map[int64]time.Time{}}
}

func (w *MemoryPollWatermarks) LastChecked(ctx context.Context, tenantID int64, shipmentIDs []int64) (map[int64]time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[int64]time.Time, len(shipmentIDs))
	tenant := w.m[tenantID]
	for _, id := range shipmentIDs {
		if at, ok := tenant[id]; ok {
			out[id] = at
		}
	}
	return out, nil
}

func (w *MemoryPollWatermarks) MarkChecked(ctx context.Context, tenantID, shipmentID int64, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.m[tenantID] == nil {
		w.m[tenantID] = map[int64]time.Time{}
	}
	w.m[tenantID][shipmentID] = at.UTC()
	return nil
}
