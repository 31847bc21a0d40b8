package accounting

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

func seedFill(t *testing.T, st *store.Store, ts time.Time, side domain.Side, qty, price decimal.Decimal) {
	t.Helper()
	order, err := st.CreateOrder(context.Background(), domain.Order{
		TS: ts, Symbol: "EURUSD", Side: side, Qty: qty,
		Status: domain.OrderStatusNew, CreatedAt: ts,
	})
	require.NoError(t, err)
	_, err = st.CreateFill(context.Background(), nil, domain.Fill{
		OrderID: order.ID, TS: ts, Symbol: "EURUSD", Side: side,
		Qty: qty, Price: price,
	})
	require.NoError(t, err)
}

func TestProcessAccountingForCandleOpensPosition(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	e := New(st, decimal.NewFromFloat(1), decimal.NewFromFloat(30), decimal.New(1, -4), decimal.NewFromInt(100000))

	_, err := e.EnsureAccount(ctx, decimal.NewFromInt(100000), "USD")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedFill(t, st, t0, domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromFloat(1.1000))

	candle := domain.Candle{Symbol: "EURUSD", Timeframe: "H1", OpenTime: t0, Open: decimal.NewFromFloat(1.1020), Close: decimal.NewFromFloat(1.1010)}
	require.NoError(t, e.ProcessAccountingForCandle(ctx, candle))

	pos, err := st.GetPosition(ctx, nil, singletonAccountID, "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.True(t, pos.NetQty.Equal(decimal.NewFromInt(1)))
	require.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromFloat(1.1000)))

	acct, err := st.GetAccount(ctx, nil)
	require.NoError(t, err)
	require.True(t, acct.Equity.GreaterThan(acct.Balance), "marking at the candle's open above entry should lift equity above balance")
}

func TestProcessAccountingForCandleNetsAndRealizesPnL(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	e := New(st, decimal.NewFromFloat(1), decimal.NewFromFloat(30), decimal.New(1, -4), decimal.NewFromInt(100000))

	_, err := e.EnsureAccount(ctx, decimal.NewFromInt(100000), "USD")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	seedFill(t, st, t0, domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromFloat(1.1000))
	candle0 := domain.Candle{Symbol: "EURUSD", Timeframe: "H1", OpenTime: t0, Open: decimal.NewFromFloat(1.1000), Close: decimal.NewFromFloat(1.1000)}
	require.NoError(t, e.ProcessAccountingForCandle(ctx, candle0))

	acctBefore, err := st.GetAccount(ctx, nil)
	require.NoError(t, err)

	// Closing sell at a higher price realizes a gain and flattens the position.
	seedFill(t, st, t1, domain.SideSell, decimal.NewFromInt(1), decimal.NewFromFloat(1.1050))
	candle1 := domain.Candle{Symbol: "EURUSD", Timeframe: "H1", OpenTime: t1, Open: decimal.NewFromFloat(1.1050), Close: decimal.NewFromFloat(1.1050)}
	require.NoError(t, e.ProcessAccountingForCandle(ctx, candle1))

	pos, err := st.GetPosition(ctx, nil, singletonAccountID, "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.True(t, pos.NetQty.IsZero(), "opposite fill of equal size flattens the position")
	require.True(t, pos.RealizedPnLCum.IsPositive())

	acctAfter, err := st.GetAccount(ctx, nil)
	require.NoError(t, err)
	require.True(t, acctAfter.Balance.GreaterThan(acctBefore.Balance), "realized gain increases balance")

	trades, err := st.ListTrades(ctx, "EURUSD", nil, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.True(t, trades[0].PnL.IsPositive())
}

func TestProcessAccountingForCandleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	e := New(st, decimal.NewFromFloat(1), decimal.NewFromFloat(30), decimal.New(1, -4), decimal.NewFromInt(100000))

	_, err := e.EnsureAccount(ctx, decimal.NewFromInt(100000), "USD")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedFill(t, st, t0, domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromFloat(1.1000))
	candle := domain.Candle{Symbol: "EURUSD", Timeframe: "H1", OpenTime: t0, Open: decimal.NewFromFloat(1.1020), Close: decimal.NewFromFloat(1.1010)}

	require.NoError(t, e.ProcessAccountingForCandle(ctx, candle))
	first, err := st.GetAccount(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, e.ProcessAccountingForCandle(ctx, candle))
	second, err := st.GetAccount(ctx, nil)
	require.NoError(t, err)

	require.True(t, first.Equity.Equal(second.Equity), "re-running for an already-accounted candle must not double-apply fills")
	require.True(t, first.Balance.Equal(second.Balance))
}
