// Package accounting nets fills into positions, realizes PnL, and marks
// the account to market — the engine's sole source of truth for balance
// and equity.
package accounting

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/pricing"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const singletonAccountID int64 = 1

// Engine applies fills to positions and produces mark-to-market
// snapshots.
type Engine struct {
	store        *store.Store
	spreadPips   decimal.Decimal
	leverage     decimal.Decimal
	pipSize      decimal.Decimal
	contractSize decimal.Decimal
}

func New(st *store.Store, spreadPips, leverage, pipSize, contractSize decimal.Decimal) *Engine {
	return &Engine{store: st, spreadPips: spreadPips, leverage: leverage, pipSize: pipSize, contractSize: contractSize}
}

// ProcessAccountingForCandle applies any unaccounted fills up to
// candle.OpenTime, then marks the account to market against candle, all in
// one transaction.
func (e *Engine) ProcessAccountingForCandle(ctx context.Context, candle domain.Candle) error {
	if err := sanityCheckCandle(candle); err != nil {
		return err
	}
	return e.store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := e.applyNewFills(ctx, tx, candle.OpenTime); err != nil {
			return err
		}
		return e.markToMarket(ctx, tx, candle)
	})
}

// applyNewFills consumes every fill with accounted_at_open_time = NULL
// and ts <= asof, ordered by (ts, id), updating the netting position for
// each. Re-running with no new fills is a no-op.
func (e *Engine) applyNewFills(ctx context.Context, tx *gorm.DB, asof time.Time) error {
	fills, err := e.store.UnaccountedFillsUpTo(ctx, asof)
	if err != nil {
		return err
	}
	if len(fills) == 0 {
		return nil
	}

	acct, err := e.store.GetAccount(ctx, tx)
	if err != nil {
		return err
	}

	for _, fill := range fills {
		pos, err := e.store.GetPosition(ctx, tx, singletonAccountID, fill.Symbol)
		if err != nil {
			return err
		}
		if pos == nil {
			pos = &domain.Position{AccountID: singletonAccountID, Symbol: fill.Symbol}
		}

		fillQtySigned := fill.Qty
		if fill.Side == domain.SideSell {
			fillQtySigned = fill.Qty.Neg()
		}

		next, realized, trade := applyFillToPosition(*pos, fill, fillQtySigned)
		next.UpdatedOpenTime = asof

		if err := e.store.UpsertPosition(ctx, tx, next); err != nil {
			return err
		}
		if trade != nil {
			if _, err := e.store.CreateTrade(ctx, tx, *trade); err != nil {
				return err
			}
		}
		if !realized.IsZero() {
			acct.Balance = acct.Balance.Add(realized)
		}
		if err := e.store.MarkFillAccounted(ctx, tx, fill.ID, asof); err != nil {
			return err
		}
	}

	return e.store.UpdateAccount(ctx, tx, acct)
}

// applyFillToPosition is the netting core: same-side increase averages
// the entry price; opposite-side reduces or closes; a fill larger than
// the open quantity flips the position (close then reopen at fill
// price). Returns the next position state, the realized PnL delta, and a
// Trade row when any quantity closed.
func applyFillToPosition(pos domain.Position, fill domain.Fill, fillQtySigned decimal.Decimal) (domain.Position, decimal.Decimal, *domain.Trade) {
	realized := decimal.Zero
	var trade *domain.Trade

	currentQty := pos.NetQty
	sameDirection := currentQty.IsZero() || sameSign(currentQty, fillQtySigned)

	switch {
	case currentQty.IsZero():
		pos.NetQty = fillQtySigned
		pos.AvgEntryPrice = fill.Price
		oid := fill.OrderID
		pos.EntryOrderID = &oid

	case sameDirection:
		newQty := currentQty.Add(fillQtySigned)
		absCur := currentQty.Abs()
		absDelta := fillQtySigned.Abs()
		absNew := newQty.Abs()
		if absNew.IsPositive() {
			weighted := absCur.Mul(pos.AvgEntryPrice).Add(absDelta.Mul(fill.Price))
			pos.AvgEntryPrice = weighted.Div(absNew)
		}
		pos.NetQty = newQty

	default:
		// Opposite side: closes existing quantity, possibly flipping.
		closeQty := decimal.Min(currentQty.Abs(), fillQtySigned.Abs())
		pnlPerUnit := fill.Price.Sub(pos.AvgEntryPrice)
		if currentQty.IsNegative() {
			pnlPerUnit = pos.AvgEntryPrice.Sub(fill.Price)
		}
		realized = pnlPerUnit.Mul(closeQty)
		pos.RealizedPnLCum = pos.RealizedPnLCum.Add(realized)

		entryOrderID := int64(0)
		if pos.EntryOrderID != nil {
			entryOrderID = *pos.EntryOrderID
		}
		trade = &domain.Trade{
			EntryTS:      pos.UpdatedOpenTime,
			ExitTS:       fill.TS,
			Symbol:       fill.Symbol,
			Qty:          closeQty,
			EntryPrice:   pos.AvgEntryPrice,
			ExitPrice:    fill.Price,
			PnL:          realized,
			ExitReason:   domain.ExitReasonManual,
			EntryOrderID: entryOrderID,
			ExitOrderID:  fill.OrderID,
		}

		remaining := fillQtySigned.Abs().Sub(currentQty.Abs())
		switch {
		case remaining.IsPositive():
			// Cross-through reversal: flip to the new side at fill price.
			trade.ExitReason = domain.ExitReasonFlip
			newSign := decimal.NewFromInt(1)
			if fillQtySigned.IsNegative() {
				newSign = decimal.NewFromInt(-1)
			}
			pos.NetQty = remaining.Mul(newSign)
			pos.AvgEntryPrice = fill.Price
			oid := fill.OrderID
			pos.EntryOrderID = &oid
		case remaining.IsZero():
			pos.NetQty = decimal.Zero
			pos.AvgEntryPrice = decimal.Zero
			pos.EntryOrderID = nil
		default:
			// Partial close: same side, reduced magnitude.
			newSign := decimal.NewFromInt(1)
			if currentQty.IsNegative() {
				newSign = decimal.NewFromInt(-1)
			}
			pos.NetQty = currentQty.Abs().Sub(closeQty).Mul(newSign)
		}
	}

	return pos, realized, trade
}

func sameSign(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

// markToMarket computes unrealized PnL and margin for every open
// position as of candle, and upserts the account snapshot for
// (account_id, candle.OpenTime). Re-running for a candle already
// snapshotted overwrites with identical inputs — this call is idempotent.
func (e *Engine) markToMarket(ctx context.Context, tx *gorm.DB, candle domain.Candle) error {
	acct, err := e.store.GetAccount(ctx, tx)
	if err != nil {
		return err
	}
	positions, err := e.store.ListOpenPositions(ctx, tx, singletonAccountID)
	if err != nil {
		return err
	}

	unrealized := decimal.Zero
	marginUsed := decimal.Zero
	for _, p := range positions {
		side := domain.SideBuy
		if p.NetQty.IsNegative() {
			side = domain.SideSell
		}
		markPrice := pricing.MarkPrice(side, candle.Open, e.spreadPips, e.pipSize)
		diff := markPrice.Sub(p.AvgEntryPrice)
		if side == domain.SideSell {
			diff = p.AvgEntryPrice.Sub(markPrice)
		}
		unrealized = unrealized.Add(diff.Mul(p.NetQty.Abs()))
		marginUsed = marginUsed.Add(pricing.MarginForQty(p.NetQty, candle.Open, e.leverage, e.contractSize))
	}

	equity := acct.Balance.Add(unrealized)
	freeMargin := equity.Sub(marginUsed)

	acct.Equity = equity
	acct.MarginUsed = marginUsed
	acct.FreeMargin = freeMargin
	if err := e.store.UpdateAccount(ctx, tx, acct); err != nil {
		return err
	}

	return e.store.UpsertAccountSnapshot(ctx, tx, domain.AccountSnapshot{
		AccountID:     singletonAccountID,
		AsOfOpenTime:  candle.OpenTime,
		Balance:       acct.Balance,
		Equity:        equity,
		UnrealizedPnL: unrealized,
		MarginUsed:    marginUsed,
		FreeMargin:    freeMargin,
	})
}

// EnsureAccount seeds the singleton account on first startup.
func (e *Engine) EnsureAccount(ctx context.Context, startingBalance decimal.Decimal, currency string) (domain.Account, error) {
	return e.store.EnsureAccount(ctx, startingBalance, currency, e.leverage)
}

// sanityCheckCandle guards against a zero-value candle slipping through
// from a caller that forgot to resolve one.
func sanityCheckCandle(c domain.Candle) error {
	if c.OpenTime.IsZero() {
		return fmt.Errorf("%w: candle has no open_time", domain.ErrDeterministicSafety)
	}
	return nil
}
