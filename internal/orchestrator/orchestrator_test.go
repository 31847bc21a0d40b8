package orchestrator

import (
	"context"
	"testing"
	"time"

	"paperfx/internal/accounting"
	"paperfx/internal/domain"
	"paperfx/internal/execution"
	"paperfx/internal/oms"
	"paperfx/internal/risk"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixedIntentStrategy always returns the configured intent, independent
// of the window, so a cycle's outcome is controlled directly from the
// test rather than depending on indicator warmup.
type fixedIntentStrategy struct {
	intent domain.StrategyIntent
}

func (f fixedIntentStrategy) Name() string           { return "fixed" }
func (f fixedIntentStrategy) MinimumCandles() int     { return 1 }
func (f fixedIntentStrategy) ComputeIntent(_ []domain.Candle) domain.StrategyIntent {
	return f.intent
}

func newHarness(t *testing.T, intent domain.StrategyIntent) (*Orchestrator, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(":memory:", store.DriverPure)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	leverage := decimal.NewFromInt(30)
	spreadPips := decimal.NewFromFloat(1)
	slippagePips := decimal.NewFromFloat(0.2)
	pipSize := decimal.New(1, -4)
	contractSize := decimal.NewFromInt(100000)

	_, err = st.EnsureAccount(ctx, decimal.NewFromInt(100000), "USD", leverage)
	require.NoError(t, err)
	_, err = st.EnsureRiskLimits(ctx, domain.RiskLimits{
		AccountID: 1, MaxOpenPositions: 5, MaxOpenPositionsPerSymbol: 1,
		MaxTotalNotional: decimal.NewFromInt(500000), MaxSymbolNotional: decimal.NewFromInt(200000),
		RiskPerTradePct: decimal.Zero, DailyLossLimitPct: decimal.NewFromFloat(0.05),
		Leverage: leverage, LotStep: decimal.NewFromFloat(0.01),
	})
	require.NoError(t, err)

	riskEngine := risk.New(st, pipSize, contractSize)
	execEngine := execution.New(st, execution.Config{SpreadPips: spreadPips, SlippagePips: slippagePips, PipSize: pipSize})
	omsSvc := oms.New(st, riskEngine, oms.Config{
		MinQty:         decimal.NewFromFloat(0.01),
		AllowedSymbols: map[string]struct{}{"EURUSD": {}},
		Timeframe:      "H1",
		SpreadPips:     spreadPips,
		PipSize:        pipSize,
	})
	acctEngine := accounting.New(st, spreadPips, leverage, pipSize, contractSize)

	orch := New(st, omsSvc, execEngine, acctEngine, riskEngine, fixedIntentStrategy{intent: intent}, Config{
		CooldownCandles: 0, WindowSize: 10, StrategyName: "fixed", Timeframe: "H1", SpreadPips: spreadPips,
	}, nil)

	return orch, st
}

func TestRunCycleIsIdempotentForTheSameCandle(t *testing.T) {
	ctx := context.Background()
	orch, st := newHarness(t, domain.StrategyIntent{Action: domain.ActionBuy, Reason: "test buy"})

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := st.UpsertCandles(ctx, []domain.Candle{{
		Symbol: "EURUSD", Timeframe: "H1", OpenTime: ts,
		Open: decimal.NewFromFloat(1.1000), High: decimal.NewFromFloat(1.1010),
		Low: decimal.NewFromFloat(1.0990), Close: decimal.NewFromFloat(1.1005),
		Volume: decimal.NewFromInt(1), Source: "test",
	}})
	require.NoError(t, err)

	first, err := orch.RunCycle(ctx, "EURUSD", "H1", ts)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusOK, first.Status)

	second, err := orch.RunCycle(ctx, "EURUSD", "H1", ts)
	require.NoError(t, err)
	require.Equal(t, first.RunID, second.RunID)
	require.Equal(t, first.OrderJSON, second.OrderJSON, "re-running the same candle must return the identical persisted report")

	orders, err := st.ListOrders(ctx, store.ListOrdersOpts{Symbol: "EURUSD"})
	require.NoError(t, err)
	require.Len(t, orders, 1, "a repeated cycle must not place a second order")
}

func TestRunCycleIsNoOpOnHold(t *testing.T) {
	ctx := context.Background()
	orch, st := newHarness(t, domain.StrategyIntent{Action: domain.ActionHold, Reason: "nothing to do"})

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := st.UpsertCandles(ctx, []domain.Candle{{
		Symbol: "EURUSD", Timeframe: "H1", OpenTime: ts,
		Open: decimal.NewFromFloat(1.1000), High: decimal.NewFromFloat(1.1010),
		Low: decimal.NewFromFloat(1.0990), Close: decimal.NewFromFloat(1.1005),
		Volume: decimal.NewFromInt(1), Source: "test",
	}})
	require.NoError(t, err)

	report, err := orch.RunCycle(ctx, "EURUSD", "H1", ts)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusNOOP, report.Status)

	orders, err := st.ListOrders(ctx, store.ListOrdersOpts{Symbol: "EURUSD"})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestRunCycleErrorsOnMissingCandle(t *testing.T) {
	ctx := context.Background()
	orch, _ := newHarness(t, domain.StrategyIntent{Action: domain.ActionHold})

	_, err := orch.RunCycle(ctx, "EURUSD", "H1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, domain.ErrNotFound)
}
