package ingestion

import (
	"context"
	"time"

	"paperfx/internal/domain"
)

// Provider fetches raw candles for a symbol/timeframe window from a
// market data vendor.
type Provider interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Candle, error)
}
