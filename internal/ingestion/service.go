// Package ingestion fetches candles from a vendor, validates them
// against the timeframe grid and OHLC invariants, upserts them, and
// checks the resulting window for gaps.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/store"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config tunes ingestion behavior.
type Config struct {
	OverlapCandles     int
	InitialBackfillDays int
	IntegrityWindowDays int
}

// Service drives fetch → validate → upsert → integrity-check.
type Service struct {
	store    *store.Store
	provider Provider
	cfg      Config
	log      *zap.Logger
}

func New(st *store.Store, provider Provider, cfg Config, log *zap.Logger) *Service {
	return &Service{store: st, provider: provider, cfg: cfg, log: log}
}

// Result summarizes one ingest() call.
type Result struct {
	Processed       int
	LatestOpenTime  *time.Time
	Integrity       domain.IntegrityReport
}

// Ingest fetches the window since the last stored candle (or the initial
// backfill window if the store is empty), validates and upserts it, and
// runs an integrity check over the recent window.
func (s *Service) Ingest(ctx context.Context, symbol, timeframe string) (Result, error) {
	step, err := Duration(timeframe)
	if err != nil {
		return Result{}, err
	}

	latest, err := s.store.LatestCandle(ctx, symbol, timeframe)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	var fetchStart time.Time
	if latest == nil {
		fetchStart = now.Add(-time.Duration(s.cfg.InitialBackfillDays) * 24 * time.Hour)
		if s.log != nil {
			s.log.Info("backfilling empty store", zap.String("symbol", symbol), zap.String("timeframe", timeframe), zap.Int("days", s.cfg.InitialBackfillDays))
		}
	} else {
		overlap := time.Duration(s.cfg.OverlapCandles) * step
		fetchStart = latest.OpenTime.Add(-overlap)
	}

	raw, err := s.fetchWithRetry(ctx, symbol, timeframe, fetchStart, now)
	if err != nil {
		return Result{}, fmt.Errorf("%w: fetch candles: %v", domain.ErrVendorUnavailable, err)
	}

	valid := make([]domain.Candle, 0, len(raw))
	for _, c := range raw {
		aligned, aerr := AlignedOpenTime(c.OpenTime, timeframe)
		if aerr != nil || !aligned.Equal(c.OpenTime) {
			continue
		}
		if !c.ValidOHLC() {
			continue
		}
		valid = append(valid, c)
	}

	n, err := s.store.UpsertCandles(ctx, valid)
	if err != nil {
		return Result{}, err
	}

	integrity, err := CheckIntegrity(ctx, s.store, symbol, timeframe, s.cfg.IntegrityWindowDays)
	if err != nil {
		return Result{}, err
	}

	newLatest, err := s.store.LatestCandle(ctx, symbol, timeframe)
	if err != nil {
		return Result{}, err
	}
	var latestOpenTime *time.Time
	if newLatest != nil {
		t := newLatest.OpenTime
		latestOpenTime = &t
	}

	return Result{Processed: n, LatestOpenTime: latestOpenTime, Integrity: integrity}, nil
}

// Backfill fetches and upserts an explicit [start, end) range, bypassing
// the latest-candle heuristic.
func (s *Service) Backfill(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	raw, err := s.fetchWithRetry(ctx, symbol, timeframe, start, end)
	if err != nil {
		return 0, fmt.Errorf("%w: backfill fetch: %v", domain.ErrVendorUnavailable, err)
	}
	valid := make([]domain.Candle, 0, len(raw))
	for _, c := range raw {
		aligned, aerr := AlignedOpenTime(c.OpenTime, timeframe)
		if aerr != nil || !aligned.Equal(c.OpenTime) {
			continue
		}
		if c.ValidOHLC() {
			valid = append(valid, c)
		}
	}
	return s.store.UpsertCandles(ctx, valid)
}

// fetchWithRetry wraps the vendor call in an exponential backoff so a
// transient HTTP failure doesn't fail a whole ingest cycle.
func (s *Service) fetchWithRetry(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	var candles []domain.Candle
	op := func() error {
		c, err := s.provider.FetchCandles(ctx, symbol, timeframe, start, end)
		if err != nil {
			return err
		}
		candles = c
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return candles, nil
}
