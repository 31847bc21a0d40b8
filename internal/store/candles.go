package store

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	gormmodel "paperfx/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func candleToModel(c domain.Candle) gormmodel.CandleModel {
	return gormmodel.CandleModel{
		Symbol:     c.Symbol,
		Timeframe:  c.Timeframe,
		OpenTime:   c.OpenTime.UTC(),
		Open:       c.Open,
		High:       c.High,
		Low:        c.Low,
		Close:      c.Close,
		Volume:     c.Volume,
		Source:     c.Source,
		IngestedAt: c.IngestedAt.UTC(),
	}
}

func modelToCandle(m gormmodel.CandleModel) domain.Candle {
	return domain.Candle{
		Symbol:     m.Symbol,
		Timeframe:  m.Timeframe,
		OpenTime:   m.OpenTime.UTC(),
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
		Volume:     m.Volume,
		Source:     m.Source,
		IngestedAt: m.IngestedAt.UTC(),
	}
}

// UpsertCandles writes candles idempotently on (symbol, timeframe, open_time).
// Rows failing basic OHLC sanity are skipped, not fatal to the batch —
// timeframe-grid alignment is enforced by the ingestion service before
// rows reach here.
func (s *Store) UpsertCandles(ctx context.Context, candles []domain.Candle) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	accepted := make([]gormmodel.CandleModel, 0, len(candles))
	for _, c := range candles {
		if !c.ValidOHLC() {
			continue
		}
		accepted = append(accepted, candleToModel(c))
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "open_time"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "volume", "source", "ingested_at",
			}),
		}).Create(&accepted).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert candles: %v", domain.ErrStoreUnavailable, err)
	}
	return len(accepted), nil
}

// LatestCandle returns the most recently stored bar for (symbol, tf), or
// nil if none exists.
func (s *Store) LatestCandle(ctx context.Context, symbol, timeframe string) (*domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, timeframe).
		Order("open_time DESC").
		Limit(1).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest candle: %v", domain.ErrStoreUnavailable, err)
	}
	c := modelToCandle(m)
	return &c, nil
}

// LatestCandleAtOrBefore returns the latest stored bar with
// open_time <= asOf, or nil if none exists. Used by the risk engine to
// find the reference candle for a cycle.
func (s *Store) LatestCandleAtOrBefore(ctx context.Context, symbol, timeframe string, asOf time.Time) (*domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND open_time <= ?", symbol, timeframe, asOf.UTC()).
		Order("open_time DESC").
		Limit(1).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest candle at or before: %v", domain.ErrStoreUnavailable, err)
	}
	c := modelToCandle(m)
	return &c, nil
}

// ExactCandle returns the candle at exactly open_time, or nil if absent.
func (s *Store) ExactCandle(ctx context.Context, symbol, timeframe string, openTime time.Time) (*domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND open_time = ?", symbol, timeframe, openTime.UTC()).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: exact candle: %v", domain.ErrStoreUnavailable, err)
	}
	c := modelToCandle(m)
	return &c, nil
}

// NextCandleAfter returns the earliest stored bar with open_time > after,
// or nil if none exists yet.
func (s *Store) NextCandleAfter(ctx context.Context, symbol, timeframe string, after time.Time) (*domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND open_time > ?", symbol, timeframe, after.UTC()).
		Order("open_time ASC").
		Limit(1).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: next candle: %v", domain.ErrStoreUnavailable, err)
	}
	c := modelToCandle(m)
	return &c, nil
}

// AnyCandleExists reports whether any candle has ever been stored for
// (symbol, tf) — used to distinguish "unknown symbol" from "no data yet
// after this timestamp".
func (s *Store) AnyCandleExists(ctx context.Context, symbol, timeframe string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&gormmodel.CandleModel{}).
		Where("symbol = ? AND timeframe = ?", symbol, timeframe).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: candle existence check: %v", domain.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// RangeCandles returns candles in [start, end] (inclusive bounds when set),
// ordered ascending by open_time, capped at limit (0 = unbounded).
func (s *Store) RangeCandles(ctx context.Context, symbol, timeframe string, start, end *time.Time, limit int) ([]domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	q := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, timeframe)
	if start != nil {
		q = q.Where("open_time >= ?", start.UTC())
	}
	if end != nil {
		q = q.Where("open_time <= ?", end.UTC())
	}
	q = q.Order("open_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []gormmodel.CandleModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: range candles: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToCandle(r))
	}
	return out, nil
}

// WindowEndingAt returns the last n candles with open_time <= asOf,
// ordered ascending (oldest first) — the window the strategy engine
// consumes.
func (s *Store) WindowEndingAt(ctx context.Context, symbol, timeframe string, asOf time.Time, n int) ([]domain.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var rows []gormmodel.CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND open_time <= ?", symbol, timeframe, asOf.UTC()).
		Order("open_time DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: strategy window: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Candle, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = modelToCandle(r)
	}
	return out, nil
}

// DeleteCandlesBefore removes candles with open_time < cutoff. Returns the
// number of deleted rows.
func (s *Store) DeleteCandlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	res := s.db.WithContext(ctx).Where("open_time < ?", cutoff.UTC()).Delete(&gormmodel.CandleModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: prune candles: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
