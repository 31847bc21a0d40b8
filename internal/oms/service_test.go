package oms

import (
	"context"
	"testing"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/risk"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(":memory:", store.DriverPure)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	leverage := decimal.NewFromInt(30)
	_, err = st.EnsureAccount(ctx, decimal.NewFromInt(100000), "USD", leverage)
	require.NoError(t, err)
	_, err = st.EnsureRiskLimits(ctx, domain.RiskLimits{
		AccountID: 1, MaxOpenPositions: 5, MaxOpenPositionsPerSymbol: 1,
		MaxTotalNotional: decimal.NewFromInt(500000), MaxSymbolNotional: decimal.NewFromInt(200000),
		RiskPerTradePct: decimal.Zero, DailyLossLimitPct: decimal.NewFromFloat(0.05),
		Leverage: leverage, LotStep: decimal.NewFromFloat(0.01),
	})
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = st.UpsertCandles(ctx, []domain.Candle{{
		Symbol: "EURUSD", Timeframe: "H1", OpenTime: ts,
		Open: decimal.NewFromFloat(1.1000), High: decimal.NewFromFloat(1.1010),
		Low: decimal.NewFromFloat(1.0990), Close: decimal.NewFromFloat(1.1005),
		Volume: decimal.NewFromInt(1), Source: "test",
	}})
	require.NoError(t, err)

	riskEngine := risk.New(st, decimal.New(1, -4), decimal.NewFromInt(100000))
	svc := New(st, riskEngine, Config{
		MinQty:         decimal.NewFromFloat(0.01),
		AllowedSymbols: map[string]struct{}{"EURUSD": {}},
		Timeframe:      "H1",
		SpreadPips:     decimal.NewFromFloat(1),
		PipSize:        decimal.New(1, -4),
	})
	return svc, st
}

func TestPlaceIsIdempotentForSameKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	req := PlaceRequest{Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1), IdempotencyKey: "key-1"}
	first, err := svc.Place(ctx, req)
	require.NoError(t, err)

	second, err := svc.Place(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
}

func TestPlaceRejectsIdempotencyConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Place(ctx, PlaceRequest{Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1), IdempotencyKey: "key-2"})
	require.NoError(t, err)

	_, err = svc.Place(ctx, PlaceRequest{Symbol: "EURUSD", Side: domain.SideSell, Qty: decimal.NewFromInt(2), IdempotencyKey: "key-2"})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestPlaceRejectsDisallowedSymbol(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	result, err := svc.Place(ctx, PlaceRequest{Symbol: "GBPUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusRejected, result.Status)
}

func TestCancelOnlyAllowsNewOrders(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	placed, err := svc.Place(ctx, PlaceRequest{Symbol: "EURUSD", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusNew, placed.Status)

	canceled, err := svc.Cancel(ctx, placed.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCanceled, canceled.Status)

	_, err = svc.Cancel(ctx, placed.OrderID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}
