// Package orchestrator drives one end-to-end decision cycle per closed
// candle: execution of pending orders, accounting and mark-to-market,
// strategy intent, order placement, and a persisted run report.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"paperfx/internal/accounting"
	"paperfx/internal/domain"
	"paperfx/internal/execution"
	"paperfx/internal/ingestion"
	"paperfx/internal/oms"
	"paperfx/internal/risk"
	"paperfx/internal/strategy"
	"paperfx/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// idempotencyNamespace anchors the uuid5 idempotency keys derived for
// each cycle's order.
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("paperfx.orchestrator"))

// Config tunes cycle behavior.
type Config struct {
	CooldownCandles int
	WindowSize      int
	StrategyName    string
	Timeframe       string
	SpreadPips      decimal.Decimal
}

// Orchestrator composes the engine's components into a single repeatable
// cycle, keyed by (symbol, timeframe, candle open_time).
type Orchestrator struct {
	store      *store.Store
	oms        *oms.Service
	exec       *execution.Engine
	accounting *accounting.Engine
	risk       *risk.Engine
	strategy   strategy.Strategy
	cfg        Config
	log        *zap.Logger
}

func New(st *store.Store, omsSvc *oms.Service, execEngine *execution.Engine, acctEngine *accounting.Engine, riskEngine *risk.Engine, strat strategy.Strategy, cfg Config, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      st,
		oms:        omsSvc,
		exec:       execEngine,
		accounting: acctEngine,
		risk:       riskEngine,
		strategy:   strat,
		cfg:        cfg,
		log:        log,
	}
}

// RunCycle executes the full decision cycle for one closed candle. It
// never returns a process-fatal error for domain failures: any error
// mid-cycle is captured into an ERROR run report and returned to the
// caller for visibility, but the orchestrator itself keeps running.
func (o *Orchestrator) RunCycle(ctx context.Context, symbol, timeframe string, candleTS time.Time) (domain.RunReport, error) {
	runID := uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%s|%s|%s", symbol, timeframe, candleTS.UTC().Format(time.RFC3339)))).String()

	candle, err := o.store.ExactCandle(ctx, symbol, timeframe, candleTS)
	if err != nil {
		return domain.RunReport{}, err
	}
	if candle == nil {
		return domain.RunReport{}, fmt.Errorf("%w: candle %s %s at %s not found", domain.ErrNotFound, symbol, timeframe, candleTS)
	}

	if prior, perr := o.store.GetRunReportByCandle(ctx, symbol, timeframe, candleTS); perr == nil {
		if prior.Status == domain.RunStatusOK || prior.Status == domain.RunStatusNOOP {
			return prior, nil
		}
	}

	report, runErr := o.runCycleInner(ctx, runID, symbol, timeframe, *candle)
	if runErr != nil {
		errReport := domain.RunReport{
			RunID:       runID,
			Status:      domain.RunStatusError,
			Symbol:      symbol,
			Timeframe:   timeframe,
			CandleTS:    candleTS,
			ErrorText:   runErr.Error(),
			SummaryText: fmt.Sprintf("run_id=%s status=ERROR error=%s", runID, runErr.Error()),
			CreatedAt:   time.Now().UTC(),
		}
		if uerr := o.store.UpsertRunReport(ctx, errReport); uerr != nil {
			o.logError("persist error report", uerr)
		}
		return errReport, nil
	}
	return report, nil
}

func (o *Orchestrator) runCycleInner(ctx context.Context, runID, symbol, timeframe string, candle domain.Candle) (domain.RunReport, error) {
	if _, err := o.exec.ProcessNewOrdersForCandle(ctx, symbol, timeframe, candle.OpenTime); err != nil {
		return domain.RunReport{}, fmt.Errorf("resolve pending fills: %w", err)
	}

	if err := o.accounting.ProcessAccountingForCandle(ctx, candle); err != nil {
		return domain.RunReport{}, fmt.Errorf("mark to market: %w", err)
	}

	window, err := o.store.WindowEndingAt(ctx, symbol, timeframe, candle.OpenTime, o.cfg.WindowSize)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("load strategy window: %w", err)
	}
	intent := o.strategy.ComputeIntent(window)

	pos, err := o.store.GetPosition(ctx, nil, 1, symbol)
	if err != nil {
		return domain.RunReport{}, err
	}
	hasPosition := pos != nil && !pos.IsFlat()

	inCooldown, err := o.inCooldown(ctx, symbol, candle.OpenTime)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("check cooldown: %w", err)
	}
	noop := intent.Action == domain.ActionHold ||
		(intent.Action == domain.ActionClose && !hasPosition) ||
		(inCooldown && intent.Action != domain.ActionClose)

	riskSnapshot, err := o.risk.ComputeSnapshot(ctx, 1, symbol, timeframe, candle.OpenTime, o.cfg.SpreadPips)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("compute risk snapshot: %w", err)
	}
	acct, err := o.store.GetAccount(ctx, nil)
	if err != nil {
		return domain.RunReport{}, err
	}

	if noop {
		report := o.buildReport(runID, domain.RunStatusNOOP, symbol, timeframe, candle.OpenTime, intent, nil, nil, pos, riskSnapshot, acct)
		if err := o.store.UpsertRunReport(ctx, report); err != nil {
			return domain.RunReport{}, err
		}
		return report, nil
	}

	side := domain.SideBuy
	if intent.Action == domain.ActionSell {
		side = domain.SideSell
	}
	if intent.Action == domain.ActionClose && hasPosition {
		if pos.NetQty.IsPositive() {
			side = domain.SideSell
		} else {
			side = domain.SideBuy
		}
	}

	qty := decimal.NewFromInt(1)
	if hasPosition && intent.Action == domain.ActionClose {
		qty = pos.NetQty.Abs()
	}

	idemKey := uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%s|%s|%s|%s", symbol, timeframe, candle.OpenTime.UTC().Format(time.RFC3339), side))).String()

	placeResult, err := o.oms.Place(ctx, oms.PlaceRequest{
		Symbol:         symbol,
		Side:           side,
		Qty:            qty,
		StopLoss:       intent.RiskHints.StopLossPrice,
		TakeProfit:     intent.RiskHints.TakeProfitPrice,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("place order: %w", err)
	}

	order, err := o.store.GetOrder(ctx, placeResult.OrderID)
	if err != nil {
		return domain.RunReport{}, err
	}
	var fill *domain.Fill
	if placeResult.FillID != nil {
		f, ferr := o.store.FindFillByOrderID(ctx, order.ID)
		if ferr != nil {
			return domain.RunReport{}, ferr
		}
		fill = f
	}

	posAfter, err := o.store.GetPosition(ctx, nil, 1, symbol)
	if err != nil {
		return domain.RunReport{}, err
	}

	report := o.buildReport(runID, domain.RunStatusOK, symbol, timeframe, candle.OpenTime, intent, &order, fill, posAfter, riskSnapshot, acct)
	if err := o.store.UpsertRunReport(ctx, report); err != nil {
		return domain.RunReport{}, err
	}
	return report, nil
}

// inCooldown derives cooldown state from the most recent non-rejected,
// non-canceled order's timestamp rather than in-process memory, so a
// process restart mid-cooldown doesn't forget it just placed an entry.
func (o *Orchestrator) inCooldown(ctx context.Context, symbol string, candleTS time.Time) (bool, error) {
	if o.cfg.CooldownCandles <= 0 {
		return false, nil
	}
	orders, err := o.store.ListOrders(ctx, store.ListOrdersOpts{Symbol: strings.ToUpper(symbol), Limit: 20})
	if err != nil {
		return false, err
	}
	var last time.Time
	found := false
	for _, ord := range orders {
		if ord.Status == domain.OrderStatusRejected || ord.Status == domain.OrderStatusCanceled {
			continue
		}
		last = ord.TS
		found = true
		break
	}
	if !found {
		return false, nil
	}
	step, err := ingestion.Duration(o.cfg.Timeframe)
	if err != nil {
		return false, nil
	}
	cooldownUntil := last.Add(time.Duration(o.cfg.CooldownCandles) * step)
	return candleTS.Before(cooldownUntil), nil
}

func (o *Orchestrator) buildReport(runID string, status domain.RunStatus, symbol, timeframe string, candleTS time.Time, intent domain.StrategyIntent, order *domain.Order, fill *domain.Fill, pos *domain.Position, riskSnapshot domain.RiskSnapshot, acct domain.Account) domain.RunReport {
	intentJSON, _ := json.Marshal(intent)
	riskJSON, _ := json.Marshal(riskSnapshot)
	accountJSON, _ := json.Marshal(acct)
	var orderJSON, fillJSON, positionsJSON []byte
	if order != nil {
		orderJSON, _ = json.Marshal(order)
	}
	if fill != nil {
		fillJSON, _ = json.Marshal(fill)
	}
	if pos != nil {
		positionsJSON, _ = json.Marshal(pos)
	}

	summary := fmt.Sprintf("run_id=%s status=%s symbol=%s tf=%s candle=%s action=%s reason=%s",
		runID, status, symbol, timeframe, candleTS.Format(time.RFC3339), intent.Action, intent.Reason)
	telegram := summary
	if order != nil {
		telegram = fmt.Sprintf("%s\norder_id=%d order_status=%s", summary, order.ID, order.Status)
	}

	return domain.RunReport{
		RunID:         runID,
		Status:        status,
		Symbol:        symbol,
		Timeframe:     timeframe,
		CandleTS:      candleTS,
		IntentJSON:    string(intentJSON),
		RiskJSON:      string(riskJSON),
		OrderJSON:     string(orderJSON),
		FillJSON:      string(fillJSON),
		PositionsJSON: string(positionsJSON),
		AccountJSON:   string(accountJSON),
		SummaryText:   summary,
		TelegramText:  telegram,
		CreatedAt:     time.Now().UTC(),
	}
}

func (o *Orchestrator) logError(msg string, err error) {
	if o.log != nil {
		o.log.Error(msg, zap.Error(err))
	}
}
