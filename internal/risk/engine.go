// Package risk implements the pre-trade checks and account-risk snapshot
// that gate every order the orchestrator places.
package risk

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/pricing"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
)

// Engine computes risk snapshots and pre-trade decisions for the
// account's single instrument.
type Engine struct {
	store        *store.Store
	pipSize      decimal.Decimal
	contractSize decimal.Decimal
}

func New(st *store.Store, pipSize, contractSize decimal.Decimal) *Engine {
	return &Engine{store: st, pipSize: pipSize, contractSize: contractSize}
}

// ComputeSnapshot reports the account's current risk posture as of the
// latest stored candle at or before asofOpenTime.
func (e *Engine) ComputeSnapshot(ctx context.Context, accountID int64, symbol, timeframe string, asofOpenTime time.Time, spreadPips decimal.Decimal) (domain.RiskSnapshot, error) {
	symbol = normalizeSymbol(symbol)

	refCandle, err := e.store.LatestCandleAtOrBefore(ctx, symbol, timeframe, asofOpenTime)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}
	if refCandle == nil {
		return domain.RiskSnapshot{}, fmt.Errorf("%w: no market data available for risk checks at or before %s", domain.ErrDeterministicSafety, asofOpenTime)
	}

	snap, err := e.store.LatestAccountSnapshot(ctx, accountID)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}
	acct, err := e.store.GetAccount(ctx, nil)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}
	equity := acct.Equity
	balance := acct.Balance
	marginUsed := acct.MarginUsed
	freeMargin := acct.FreeMargin
	if snap != nil {
		equity = snap.Equity
		balance = snap.Balance
		marginUsed = snap.MarginUsed
		freeMargin = snap.FreeMargin
	}

	limits, err := e.store.EnsureRiskLimits(ctx, defaultLimits(accountID, acct.Leverage))
	if err != nil {
		return domain.RiskSnapshot{}, err
	}

	positions, err := e.store.ListOpenPositions(ctx, nil, accountID)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}

	totalNotional := decimal.Zero
	symbolNotional := decimal.Zero
	openPerSymbol := 0
	for _, p := range positions {
		posCandle, cerr := e.store.LatestCandleAtOrBefore(ctx, p.Symbol, timeframe, asofOpenTime)
		if cerr != nil {
			return domain.RiskSnapshot{}, cerr
		}
		if posCandle == nil {
			continue
		}
		mid := posCandle.Open
		posNotional := p.NetQty.Abs().Mul(mid)
		totalNotional = totalNotional.Add(posNotional)
		if normalizeSymbol(p.Symbol) == symbol {
			openPerSymbol++
			symbolNotional = symbolNotional.Add(posNotional)
		}
	}

	day := asofOpenTime.UTC().Truncate(24 * time.Hour)
	baseline, err := e.store.EnsureDailyEquityBaseline(ctx, nil, accountID, day, func() (decimal.Decimal, error) {
		return equity, nil
	})
	if err != nil {
		return domain.RiskSnapshot{}, err
	}
	if equity.LessThan(baseline.MinEquity) {
		if err := e.store.UpdateDailyEquityMin(ctx, nil, accountID, day, equity); err != nil {
			return domain.RiskSnapshot{}, err
		}
		baseline.MinEquity = equity
	}

	breached := false
	if limits.DailyLossLimitPct.IsPositive() {
		pctThreshold := baseline.DayStartEquity.Mul(decimal.NewFromInt(1).Sub(limits.DailyLossLimitPct))
		if equity.LessThanOrEqual(pctThreshold) {
			breached = true
		}
	}
	if limits.DailyLossLimitAmount.IsPositive() {
		amtThreshold := baseline.DayStartEquity.Sub(limits.DailyLossLimitAmount)
		if equity.LessThanOrEqual(amtThreshold) {
			breached = true
		}
	}

	return domain.RiskSnapshot{
		AccountID:              accountID,
		AsOfOpenTime:           refCandle.OpenTime,
		Day:                    day,
		Balance:                balance,
		Equity:                 equity,
		MarginUsed:             marginUsed,
		FreeMargin:             freeMargin,
		OpenPositionsCount:     len(positions),
		OpenPositionsPerSymbol: openPerSymbol,
		NotionalPerSymbol:      symbolNotional,
		TotalNotional:          totalNotional,
		DayStartEquity:         baseline.DayStartEquity,
		MinEquity:              baseline.MinEquity,
		DailyLossBreached:      breached,
	}, nil
}

// CheckOrder is the pre-trade gate: given a proposed side/qty and an
// optional stop distance in pips, it returns whether the order is
// allowed and at what (possibly reduced) quantity. Check order and
// stable reason strings follow the reference risk engine exactly so
// behavior and messages match for identical inputs.
func (e *Engine) CheckOrder(ctx context.Context, accountID int64, symbol, timeframe string, side domain.Side, qty decimal.Decimal, stopDistancePips *decimal.Decimal, asofOpenTime time.Time, spreadPips decimal.Decimal) (domain.RiskDecision, error) {
	symbol = normalizeSymbol(symbol)

	if !side.Valid() {
		return domain.RiskDecision{Reason: fmt.Sprintf("Unsupported side: %s", side)}, nil
	}
	if !qty.IsPositive() {
		return domain.RiskDecision{Reason: "qty must be > 0"}, nil
	}

	acct, err := e.store.GetAccount(ctx, nil)
	if err != nil {
		return domain.RiskDecision{}, err
	}
	limits, err := e.store.EnsureRiskLimits(ctx, defaultLimits(accountID, acct.Leverage))
	if err != nil {
		return domain.RiskDecision{}, err
	}

	snapshot, err := e.ComputeSnapshot(ctx, accountID, symbol, timeframe, asofOpenTime, spreadPips)
	if err != nil {
		return domain.RiskDecision{}, err
	}

	if snapshot.DailyLossBreached {
		return domain.RiskDecision{Reason: "Daily loss limit breached", Snapshot: snapshot}, nil
	}
	if snapshot.OpenPositionsCount >= limits.MaxOpenPositions {
		return domain.RiskDecision{Reason: "Max open positions limit reached", Snapshot: snapshot}, nil
	}
	if snapshot.OpenPositionsPerSymbol >= limits.MaxOpenPositionsPerSymbol {
		return domain.RiskDecision{Reason: "Max open positions per symbol limit reached", Snapshot: snapshot}, nil
	}

	refCandle, err := e.store.LatestCandleAtOrBefore(ctx, symbol, timeframe, asofOpenTime)
	if err != nil {
		return domain.RiskDecision{}, err
	}
	if refCandle == nil {
		return domain.RiskDecision{}, fmt.Errorf("%w: no market data available for risk checks at or before %s", domain.ErrDeterministicSafety, asofOpenTime)
	}
	midPrice := refCandle.Open

	approvedQty := qty
	if stopDistancePips != nil && stopDistancePips.IsPositive() && limits.RiskPerTradePct.IsPositive() {
		riskAmount := snapshot.Equity.Mul(limits.RiskPerTradePct)
		maxUnits := riskAmount.Div(e.pipSize.Mul(*stopDistancePips))
		floored := floorToStep(maxUnits, limits.LotStep)
		if floored.LessThan(approvedQty) {
			approvedQty = floored
		}
		if !approvedQty.IsPositive() {
			return domain.RiskDecision{Reason: "Risk-per-trade sizing reduced qty to zero", Snapshot: snapshot}, nil
		}
	}

	newNotional := approvedQty.Abs().Mul(midPrice)
	if snapshot.NotionalPerSymbol.Add(newNotional).GreaterThan(limits.MaxSymbolNotional) {
		return domain.RiskDecision{Reason: "Max symbol notional limit exceeded", Snapshot: snapshot}, nil
	}
	if snapshot.TotalNotional.Add(newNotional).GreaterThan(limits.MaxTotalNotional) {
		return domain.RiskDecision{Reason: "Max total notional limit exceeded", Snapshot: snapshot}, nil
	}

	// The notional caps above compare bare qty*mid against the configured
	// limits, but required margin is a contract-size-scaled notional over
	// leverage: qty*mid*contractSize/leverage. The two intentionally use
	// different scales. MaxSymbolNotional/MaxTotalNotional bound exposure
	// in quote-currency units of price movement; margin bounds the capital
	// actually posted against a full-size contract.
	requiredMargin := pricing.MarginForQty(approvedQty, midPrice, limits.Leverage, e.contractSize)
	if snapshot.FreeMargin.LessThan(requiredMargin) {
		return domain.RiskDecision{Reason: "Insufficient free margin", Snapshot: snapshot}, nil
	}

	return domain.RiskDecision{Allowed: true, ApprovedQty: approvedQty, Snapshot: snapshot}, nil
}

func floorToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	units := value.Div(step).Floor()
	return units.Mul(step)
}

func normalizeSymbol(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func defaultLimits(accountID int64, leverage decimal.Decimal) domain.RiskLimits {
	return domain.RiskLimits{
		AccountID:                 accountID,
		MaxOpenPositions:          5,
		MaxOpenPositionsPerSymbol: 1,
		MaxTotalNotional:          decimal.NewFromInt(500000),
		MaxSymbolNotional:         decimal.NewFromInt(200000),
		RiskPerTradePct:           decimal.NewFromFloat(0.01),
		DailyLossLimitPct:         decimal.NewFromFloat(0.05),
		DailyLossLimitAmount:      decimal.Zero,
		Leverage:                  leverage,
		LotStep:                   decimal.NewFromFloat(0.01),
	}
}
