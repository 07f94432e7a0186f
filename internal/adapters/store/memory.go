package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
)

// MemoryStore is an in-memory implementation of the ScanStore interface.
// Useful for tests and single-run CLI invocations; history does not
// survive a restart.
type MemoryStore struct {
	records    []*core.ScanRecord
	mu         sync.RWMutex
	maxEntries int
	logger     *zap.Logger
}

// NewMemoryStore creates a new in-memory scan store keeping at most
// maxEntries records; the oldest are evicted first.
func NewMemoryStore(maxEntries int, logger *zap.Logger) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		records:    make([]*core.ScanRecord, 0, maxEntries),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// Save appends a scan record, assigning an ID and timestamp if missing.
func (s *MemoryStore) Save(ctx context.Context, record *core.ScanRecord) error {
	stamped := *record
	if stamped.ID == "" {
		stamped.ID = uuid.NewString()
	}
	if stamped.ScannedAt.IsZero() {
		stamped.ScannedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &stamped)
	if len(s.records) > s.maxEntries {
		evicted := len(s.records) - s.maxEntries
		s.records = s.records[evicted:]
		s.logger.Debug("Evicted oldest scan records", zap.Int("evicted", evicted))
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*core.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*core.ScanRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.records[i]
		out = append(out, &copied)
	}
	return out, nil
}

// CountByVerdict tallies stored records per verdict.
func (s *MemoryStore) CountByVerdict(ctx context.Context) (map[core.Verdict]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[core.Verdict]int64)
	for _, r := range s.records {
		counts[r.Verdict]++
	}
	return counts, nil
}

// Close releases the store. No-op for the in-memory variant.
func (s *MemoryStore) Close() error {
	return nil
}
