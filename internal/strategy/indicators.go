package strategy

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// emaSeries computes EMA(period) over closes using go-talib.
func emaSeries(closes []float64, period int) []float64 {
	return sanitize(talib.Ema(closes, period))
}

// atrSeries computes Wilder ATR(period) over highs/lows/closes.
func atrSeries(highs, lows, closes []float64, period int) []float64 {
	return sanitize(talib.Atr(highs, lows, closes, period))
}

// sanitize zeroes out talib's NaN/Inf warmup placeholders so callers can
// treat a zero as "not yet warmed up" via atIndex's warmup cutoff instead
// of per-value NaN checks.
func sanitize(src []float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}
		out[i] = v
	}
	return out
}

// atIndex returns series[idx] as a *decimal.Decimal, or nil if idx is
// before the series has warmed up past index warmup-1.
func atIndex(series []float64, idx, warmup int) *decimal.Decimal {
	if idx < 0 || idx >= len(series) || idx < warmup {
		return nil
	}
	d := decimal.NewFromFloat(series[idx])
	return &d
}
