package execution

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

func mustCandle(t *testing.T, st *store.Store, symbol string, openTime time.Time, open decimal.Decimal) {
	t.Helper()
	c := domain.Candle{
		Symbol: symbol, Timeframe: "H1", OpenTime: openTime,
		Open: open, High: open.Add(decimal.NewFromFloat(0.001)),
		Low: open.Sub(decimal.NewFromFloat(0.001)), Close: open,
		Volume: decimal.NewFromInt(1), Source: "test",
	}
	_, err := st.UpsertCandles(context.Background(), []domain.Candle{c})
	require.NoError(t, err)
}

func TestProcessNewOrdersForCandleFillsAtNextOpen(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	mustCandle(t, st, "EURUSD", t0, decimal.NewFromFloat(1.1000))
	mustCandle(t, st, "EURUSD", t1, decimal.NewFromFloat(1.1010))

	order, err := st.CreateOrder(ctx, domain.Order{
		TS: t0, Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1),
		Status: domain.OrderStatusNew, CreatedAt: t0,
	})
	require.NoError(t, err)

	eng := New(st, Config{SpreadPips: decimal.NewFromFloat(1), SlippagePips: decimal.NewFromFloat(0.2), PipSize: decimal.New(1, -4)})
	fills, err := eng.ProcessNewOrdersForCandle(ctx, "EURUSD", "H1", t1)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	require.True(t, fills[0].Price.GreaterThan(decimal.NewFromFloat(1.1010)), "a buy fills above the next candle's open")

	updated, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFilled, updated.Status)
}

func TestProcessNewOrdersForCandleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	mustCandle(t, st, "EURUSD", t0, decimal.NewFromFloat(1.1000))
	mustCandle(t, st, "EURUSD", t1, decimal.NewFromFloat(1.1010))

	_, err := st.CreateOrder(ctx, domain.Order{
		TS: t0, Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1),
		Status: domain.OrderStatusNew, CreatedAt: t0,
	})
	require.NoError(t, err)

	eng := New(st, Config{SpreadPips: decimal.NewFromFloat(1), SlippagePips: decimal.NewFromFloat(0.2), PipSize: decimal.New(1, -4)})
	first, err := eng.ProcessNewOrdersForCandle(ctx, "EURUSD", "H1", t1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Calling again for the same candle must not create a second fill —
	// the order is already FILLED so ListOrders(status=NEW) won't return it.
	second, err := eng.ProcessNewOrdersForCandle(ctx, "EURUSD", "H1", t1)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestProcessNewOrdersForCandleMissingFillCandleFailsSafe(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	mustCandle(t, st, "EURUSD", t0, decimal.NewFromFloat(1.1000))

	_, err := st.CreateOrder(ctx, domain.Order{
		TS: t0, Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1),
		Status: domain.OrderStatusNew, CreatedAt: t0,
	})
	require.NoError(t, err)

	eng := New(st, Config{SpreadPips: decimal.NewFromFloat(1), SlippagePips: decimal.NewFromFloat(0.2), PipSize: decimal.New(1, -4)})
	_, err = eng.ProcessNewOrdersForCandle(ctx, "EURUSD", "H1", t1)
	require.ErrorIs(t, err, domain.ErrDeterministicSafety)
}
