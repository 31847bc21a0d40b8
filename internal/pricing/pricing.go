// Package pricing computes deterministic bid/ask quotes and slippage-
// adjusted fill prices for the paper engine's single instrument.
package pricing

import (
	"fmt"

	"paperfx/internal/domain"

	"github.com/shopspring/decimal"
)

// Quote is the bid/ask pair derived from a candle's open and the
// configured spread.
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Mid returns the midpoint of the quote.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// QuoteFromOpen derives bid/ask from a candle's open price and a spread in
// pips: mid is the open, spread is split evenly around it. pipSize is the
// instrument's configured price-per-pip (e.g. 0.0001 for 4-decimal FX
// quoting).
func QuoteFromOpen(openPrice, spreadPips, pipSize decimal.Decimal) Quote {
	spread := spreadPips.Mul(pipSize)
	half := spread.Div(decimal.NewFromInt(2))
	return Quote{
		Bid: openPrice.Sub(half),
		Ask: openPrice.Add(half),
	}
}

// ApplySlippage returns the deterministic fill price for side given a
// quote and a slippage allowance in pips: BUY fills worse than ask, SELL
// fills worse than bid.
func ApplySlippage(side domain.Side, q Quote, slippagePips, pipSize decimal.Decimal) (decimal.Decimal, error) {
	slip := slippagePips.Mul(pipSize)
	switch side {
	case domain.SideBuy:
		return q.Ask.Add(slip), nil
	case domain.SideSell:
		return q.Bid.Sub(slip), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported side for deterministic execution: %q", domain.ErrDeterministicSafety, side)
	}
}

// FillPrice is the one call sites need: given the candle this order fills
// on (the next candle's open, per the engine's fill rule), the configured
// spread, slippage, and pip size, compute the execution price.
func FillPrice(side domain.Side, openPrice, spreadPips, slippagePips, pipSize decimal.Decimal) (decimal.Decimal, error) {
	q := QuoteFromOpen(openPrice, spreadPips, pipSize)
	return ApplySlippage(side, q, slippagePips, pipSize)
}

// MarkPrice returns the price used to value an open position for equity
// purposes: bid for a long, ask for a short, derived from the candle's
// open per the mark-to-market convention.
func MarkPrice(side domain.Side, openPrice, spreadPips, pipSize decimal.Decimal) decimal.Decimal {
	q := QuoteFromOpen(openPrice, spreadPips, pipSize)
	if side == domain.SideSell {
		return q.Ask
	}
	return q.Bid
}

// MarginForQty returns the margin required to hold qty units at price
// under leverage: abs(qty) * price * contractSize / leverage.
func MarginForQty(qty, price, leverage, contractSize decimal.Decimal) decimal.Decimal {
	if leverage.IsZero() {
		return decimal.Zero
	}
	return qty.Abs().Mul(price).Mul(contractSize).Div(leverage)
}
