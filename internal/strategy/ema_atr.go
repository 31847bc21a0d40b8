package strategy

import (
	"fmt"
	"strings"

	"paperfx/internal/domain"
	"paperfx/internal/ingestion"

	"github.com/shopspring/decimal"
)

func init() {
	Register("ema_atr", newEmaAtr)
}

// EmaAtrParams tunes the EMA-cross + ATR-hint strategy.
type EmaAtrParams struct {
	EMAFastPeriod int
	EMASlowPeriod int
	ATRPeriod     int
	SLAtrMult     decimal.Decimal
	TPAtrMult     decimal.Decimal
}

func defaultEmaAtrParams() EmaAtrParams {
	return EmaAtrParams{
		EMAFastPeriod: 20,
		EMASlowPeriod: 50,
		ATRPeriod:     14,
		SLAtrMult:     decimal.NewFromFloat(1.5),
		TPAtrMult:     decimal.NewFromFloat(2.0),
	}
}

func newEmaAtr(raw map[string]float64) (Strategy, error) {
	p := defaultEmaAtrParams()
	if v, ok := raw["ema_fast_period"]; ok {
		p.EMAFastPeriod = int(v)
	}
	if v, ok := raw["ema_slow_period"]; ok {
		p.EMASlowPeriod = int(v)
	}
	if v, ok := raw["atr_period"]; ok {
		p.ATRPeriod = int(v)
	}
	if v, ok := raw["sl_atr_mult"]; ok {
		p.SLAtrMult = decimal.NewFromFloat(v)
	}
	if v, ok := raw["tp_atr_mult"]; ok {
		p.TPAtrMult = decimal.NewFromFloat(v)
	}
	if p.EMAFastPeriod <= 0 || p.EMASlowPeriod <= 0 || p.ATRPeriod <= 0 {
		return nil, fmt.Errorf("%w: ema/atr periods must be > 0", domain.ErrValidation)
	}
	if p.EMAFastPeriod >= p.EMASlowPeriod {
		return nil, fmt.Errorf("%w: ema_fast_period must be < ema_slow_period", domain.ErrValidation)
	}
	if !p.SLAtrMult.IsPositive() || !p.TPAtrMult.IsPositive() {
		return nil, fmt.Errorf("%w: sl_atr_mult and tp_atr_mult must be > 0", domain.ErrValidation)
	}
	return &emaAtrStrategy{params: p}, nil
}

type emaAtrStrategy struct {
	params EmaAtrParams
}

func (s *emaAtrStrategy) Name() string { return "ema_atr" }

func (s *emaAtrStrategy) MinimumCandles() int {
	min := s.params.EMASlowPeriod + 1
	if s.params.ATRPeriod+1 > min {
		min = s.params.ATRPeriod + 1
	}
	return min
}

func (s *emaAtrStrategy) ComputeIntent(candles []domain.Candle) domain.StrategyIntent {
	if len(candles) == 0 {
		return domain.StrategyIntent{
			Action:  domain.ActionHold,
			Reason:  "insufficient_data",
			Summary: "no candles => HOLD (insufficient_data)",
		}
	}

	latest := candles[len(candles)-1]
	symbol := strings.ToUpper(latest.Symbol)
	timeframe := strings.ToUpper(latest.Timeframe)
	ts := latest.OpenTime

	if len(candles) < s.MinimumCandles() {
		return domain.StrategyIntent{
			Action:    domain.ActionHold,
			Reason:    "insufficient_data",
			Symbol:    symbol,
			Timeframe: timeframe,
			TS:        ts,
			Summary: fmt.Sprintf("%s %s candles=%d required=%d => HOLD (insufficient_data)",
				symbol, timeframe, len(candles), s.MinimumCandles()),
		}
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
	}

	emaFastSeries := emaSeries(closes, s.params.EMAFastPeriod)
	emaSlowSeries := emaSeries(closes, s.params.EMASlowPeriod)
	atrSeriesVal := atrSeries(highs, lows, closes, s.params.ATRPeriod)

	idx := len(candles) - 1
	prevIdx := idx - 1

	// talib's EMA(n) is first defined at index n-1 and ATR(n) at index n.
	emaFast := atIndex(emaFastSeries, idx, s.params.EMASlowPeriod-1)
	emaSlow := atIndex(emaSlowSeries, idx, s.params.EMASlowPeriod-1)
	atr := atIndex(atrSeriesVal, idx, s.params.ATRPeriod)
	prevFast := atIndex(emaFastSeries, prevIdx, s.params.EMASlowPeriod-1)
	prevSlow := atIndex(emaSlowSeries, prevIdx, s.params.EMASlowPeriod-1)

	if emaFast == nil || emaSlow == nil || atr == nil || prevFast == nil || prevSlow == nil {
		ind := domain.StrategyIndicators{EMAFast: emaFast, EMASlow: emaSlow, ATR: atr}
		return domain.StrategyIntent{
			Action:     domain.ActionHold,
			Reason:     "insufficient_data",
			Symbol:     symbol,
			Timeframe:  timeframe,
			TS:         ts,
			Indicators: ind,
			Summary:    fmt.Sprintf("%s %s indicator warmup incomplete => HOLD (insufficient_data)", symbol, timeframe),
		}
	}

	action := domain.ActionHold
	reason := "no_cross"

	switch {
	case prevFast.LessThanOrEqual(*prevSlow) && emaFast.GreaterThan(*emaSlow):
		action = domain.ActionBuy
		reason = "cross_up"
	case prevFast.GreaterThanOrEqual(*prevSlow) && emaFast.LessThan(*emaSlow):
		action = domain.ActionSell
		reason = "cross_down"
	}

	if step, err := ingestion.Duration(timeframe); err == nil {
		for i := 1; i < len(candles); i++ {
			if candles[i].OpenTime.Sub(candles[i-1].OpenTime) != step {
				reason += ",data_gap_detected"
				break
			}
		}
	}

	closePrice := latest.Close
	var stopLoss, takeProfit *decimal.Decimal
	switch action {
	case domain.ActionBuy:
		sl := closePrice.Sub(atr.Mul(s.params.SLAtrMult))
		tp := closePrice.Add(atr.Mul(s.params.TPAtrMult))
		stopLoss, takeProfit = &sl, &tp
	case domain.ActionSell:
		sl := closePrice.Add(atr.Mul(s.params.SLAtrMult))
		tp := closePrice.Sub(atr.Mul(s.params.TPAtrMult))
		stopLoss, takeProfit = &sl, &tp
	}

	summary := fmt.Sprintf(
		"%s %s ema%d=%s, ema%d=%s, atr=%s => %s (%s), SL=%s, TP=%s",
		symbol, timeframe,
		s.params.EMAFastPeriod, emaFast.StringFixed(6),
		s.params.EMASlowPeriod, emaSlow.StringFixed(6),
		atr.StringFixed(6), action, reason,
		fmtPrice(stopLoss), fmtPrice(takeProfit),
	)

	return domain.StrategyIntent{
		Action:     action,
		Reason:     reason,
		Symbol:     symbol,
		Timeframe:  timeframe,
		TS:         ts,
		Indicators: domain.StrategyIndicators{EMAFast: emaFast, EMASlow: emaSlow, ATR: atr},
		RiskHints:  domain.StrategyRiskHints{StopLossPrice: stopLoss, TakeProfitPrice: takeProfit},
		Summary:    summary,
	}
}

func fmtPrice(v *decimal.Decimal) string {
	if v == nil {
		return "n/a"
	}
	return v.StringFixed(6)
}
