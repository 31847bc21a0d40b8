package ingestion

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/store"
)

// CheckIntegrity scans the last `days` of stored candles for
// symbol/timeframe and reports gaps and duplicates. A duplicate here
// means a second row observed with an open_time already seen in this
// scan — the store's unique index prevents this at rest, so a non-zero
// count only arises if that invariant was ever bypassed.
func CheckIntegrity(ctx context.Context, st *store.Store, symbol, timeframe string, days int) (domain.IntegrityReport, error) {
	step, err := Duration(timeframe)
	if err != nil {
		return domain.IntegrityReport{}, err
	}

	now := time.Now().UTC()
	start := now.Add(-time.Duration(days) * 24 * time.Hour)

	candles, err := st.RangeCandles(ctx, symbol, timeframe, &start, &now, 0)
	if err != nil {
		return domain.IntegrityReport{}, err
	}

	report := domain.IntegrityReport{
		Symbol:    symbol,
		Timeframe: timeframe,
	}

	expectedCount := int(now.Sub(start) / step)
	report.ExpectedCount = expectedCount
	report.ActualCount = len(candles)

	if len(candles) == 0 {
		report.IsComplete = true
		return report, nil
	}

	earliest := candles[0].OpenTime
	latest := candles[len(candles)-1].OpenTime
	report.Earliest = &earliest
	report.Latest = &latest

	seen := make(map[time.Time]bool, len(candles))
	prevTime := earliest
	duplicates := 0
	var gaps []domain.Gap

	for i, c := range candles {
		if seen[c.OpenTime] {
			duplicates++
		}
		seen[c.OpenTime] = true

		if i == 0 {
			prevTime = c.OpenTime
			continue
		}
		expectedNext := prevTime.Add(step)
		if c.OpenTime.After(expectedNext) {
			gaps = append(gaps, domain.Gap{
				FirstMissingOpenTime: expectedNext,
				LastMissingOpenTime:  c.OpenTime.Add(-step),
			})
		}
		prevTime = c.OpenTime
	}

	report.DuplicatesCount = duplicates
	report.MissingRanges = gaps
	report.IsComplete = len(gaps) == 0 && duplicates == 0

	return report, nil
}

// ErrInvalidTimeframe is returned for a timeframe code outside the
// supported grid set.
var ErrInvalidTimeframe = fmt.Errorf("invalid timeframe")
