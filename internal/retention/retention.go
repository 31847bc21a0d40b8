// Package retention prunes candles older than the configured horizon.
package retention

import (
	"context"
	"time"

	"paperfx/internal/store"

	"go.uber.org/zap"
)

// Service prunes candles past their retention horizon.
type Service struct {
	store           *store.Store
	retentionDays   int
	log             *zap.Logger
}

func New(st *store.Store, retentionDays int, log *zap.Logger) *Service {
	return &Service{store: st, retentionDays: retentionDays, log: log}
}

// Result reports a single prune run.
type Result struct {
	DeletedCount  int64
	CutoffTime    time.Time
	RetentionDays int
}

// Prune deletes candles with open_time before the retention cutoff,
// across every symbol/timeframe in the store.
func (s *Service) Prune(ctx context.Context) (Result, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteCandlesBefore(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}
	if s.log != nil {
		s.log.Info("pruned candles",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff), zap.Int("retention_days", s.retentionDays))
	}
	return Result{DeletedCount: deleted, CutoffTime: cutoff, RetentionDays: s.retentionDays}, nil
}

// SetRetentionDays updates the horizon — the config watcher's
// subscription calls it with each reloaded snapshot.
func (s *Service) SetRetentionDays(days int) {
	s.retentionDays = days
}
