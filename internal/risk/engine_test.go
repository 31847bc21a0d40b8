package risk

import (
	"context"
	"testing"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", store.DriverPure)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedAccountAndCandle(t *testing.T, st *store.Store, balance decimal.Decimal, limits domain.RiskLimits) time.Time {
	t.Helper()
	ctx := context.Background()
	_, err := st.EnsureAccount(ctx, balance, "USD", limits.Leverage)
	require.NoError(t, err)
	_, err = st.EnsureRiskLimits(ctx, limits)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = st.UpsertCandles(ctx, []domain.Candle{{
		Symbol: "EURUSD", Timeframe: "H1", OpenTime: ts,
		Open: decimal.NewFromFloat(1.1000), High: decimal.NewFromFloat(1.1010),
		Low: decimal.NewFromFloat(1.0990), Close: decimal.NewFromFloat(1.1005),
		Volume: decimal.NewFromInt(1), Source: "test",
	}})
	require.NoError(t, err)
	return ts
}

func baseLimits() domain.RiskLimits {
	return domain.RiskLimits{
		AccountID: 1, MaxOpenPositions: 5, MaxOpenPositionsPerSymbol: 1,
		MaxTotalNotional: decimal.NewFromInt(500000), MaxSymbolNotional: decimal.NewFromInt(200000),
		RiskPerTradePct: decimal.NewFromFloat(0.01), DailyLossLimitPct: decimal.NewFromFloat(0.05),
		Leverage: decimal.NewFromInt(30), LotStep: decimal.NewFromFloat(0.01),
	}
}

func TestCheckOrderAllowsWithinLimits(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ts := seedAccountAndCandle(t, st, decimal.NewFromInt(100000), baseLimits())

	e := New(st, decimal.New(1, -4), decimal.NewFromInt(100000))
	decision, err := e.CheckOrder(ctx, 1, "EURUSD", "H1", domain.SideBuy, decimal.NewFromInt(1), nil, ts, decimal.NewFromFloat(1))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.True(t, decision.ApprovedQty.Equal(decimal.NewFromInt(1)))
}

func TestCheckOrderRejectsOverSymbolNotional(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	limits := baseLimits()
	limits.MaxSymbolNotional = decimal.NewFromInt(1)
	ts := seedAccountAndCandle(t, st, decimal.NewFromInt(100000), limits)

	e := New(st, decimal.New(1, -4), decimal.NewFromInt(100000))
	decision, err := e.CheckOrder(ctx, 1, "EURUSD", "H1", domain.SideBuy, decimal.NewFromInt(1), nil, ts, decimal.NewFromFloat(1))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "Max symbol notional limit exceeded", decision.Reason)
}

func TestCheckOrderRejectsZeroQty(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ts := seedAccountAndCandle(t, st, decimal.NewFromInt(100000), baseLimits())

	e := New(st, decimal.New(1, -4), decimal.NewFromInt(100000))
	decision, err := e.CheckOrder(ctx, 1, "EURUSD", "H1", domain.SideBuy, decimal.Zero, nil, ts, decimal.NewFromFloat(1))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckOrderSizesDownByStopDistance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	limits := baseLimits()
	limits.RiskPerTradePct = decimal.NewFromFloat(0.000001)
	ts := seedAccountAndCandle(t, st, decimal.NewFromInt(100000), limits)

	e := New(st, decimal.New(1, -4), decimal.NewFromInt(100000))
	stopPips := decimal.NewFromInt(50)
	decision, err := e.CheckOrder(ctx, 1, "EURUSD", "H1", domain.SideBuy, decimal.NewFromInt(100), &stopPips, ts, decimal.NewFromFloat(1))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.True(t, decision.ApprovedQty.LessThan(decimal.NewFromInt(100)), "risk sizing must reduce the requested quantity")
}
