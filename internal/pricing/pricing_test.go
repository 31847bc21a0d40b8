package pricing

import (
	"testing"

	"paperfx/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPipSize = decimal.New(1, -4)

func TestFillPriceIsDeterministic(t *testing.T) {
	open := decimal.NewFromFloat(1.1000)
	spread := decimal.NewFromFloat(2)
	slippage := decimal.NewFromFloat(1)

	first, err := FillPrice(domain.SideBuy, open, spread, slippage, testPipSize)
	require.NoError(t, err)
	second, err := FillPrice(domain.SideBuy, open, spread, slippage, testPipSize)
	require.NoError(t, err)

	assert.True(t, first.Equal(second), "same inputs must produce the same fill price")
}

func TestFillPriceBuyWorseThanSell(t *testing.T) {
	open := decimal.NewFromFloat(1.1000)
	spread := decimal.NewFromFloat(2)
	slippage := decimal.NewFromFloat(1)

	buy, err := FillPrice(domain.SideBuy, open, spread, slippage, testPipSize)
	require.NoError(t, err)
	sell, err := FillPrice(domain.SideSell, open, spread, slippage, testPipSize)
	require.NoError(t, err)

	assert.True(t, buy.GreaterThan(open), "a buy fills above the open once spread and slippage are applied")
	assert.True(t, sell.LessThan(open), "a sell fills below the open once spread and slippage are applied")
	assert.True(t, buy.GreaterThan(sell))
}

func TestFillPriceRejectsUnsupportedSide(t *testing.T) {
	_, err := FillPrice(domain.Side("FLAT"), decimal.NewFromFloat(1.1), decimal.Zero, decimal.Zero, testPipSize)
	assert.ErrorIs(t, err, domain.ErrDeterministicSafety)
}

func TestMarkPriceUsesOppositeSideOfQuote(t *testing.T) {
	open := decimal.NewFromFloat(1.2000)
	spread := decimal.NewFromFloat(2)

	longMark := MarkPrice(domain.SideBuy, open, spread, testPipSize)
	shortMark := MarkPrice(domain.SideSell, open, spread, testPipSize)

	assert.True(t, longMark.LessThan(open), "a long position marks at the bid")
	assert.True(t, shortMark.GreaterThan(open), "a short position marks at the ask")
}

func TestMarginForQtyZeroLeverage(t *testing.T) {
	m := MarginForQty(decimal.NewFromInt(1), decimal.NewFromFloat(1.1), decimal.Zero, decimal.NewFromInt(100000))
	assert.True(t, m.IsZero())
}
