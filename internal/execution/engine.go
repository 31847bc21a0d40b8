// Package execution fills orders deterministically against the next
// candle's open, the paper engine's only execution rule.
package execution

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

// Config tunes fill pricing.
type Config struct {
	SpreadPips   decimal.Decimal
	SlippagePips decimal.Decimal
	PipSize      decimal.Decimal
}

// Engine fills NEW orders against the next candle's open.
type Engine struct {
	store *store.Store
	cfg   Config
}

func New(st *store.Store, cfg Config) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// ProcessNewOrdersForCandle fills every eligible NEW order whose next
// candle is exactly fillCandleOpenTime. An order whose next candle isn't
// this one yet is left untouched — the orchestrator calls this once per
// advancing candle, so every order eventually reaches its fill candle.
//
// If any eligible order's fill candle is missing from the store this call
// fails fast with domain.ErrDeterministicSafety and writes nothing: a
// fill price can never be invented.
func (e *Engine) ProcessNewOrdersForCandle(ctx context.Context, symbol, timeframe string, fillCandleOpenTime time.Time) ([]domain.Fill, error) {
	orders, err := e.store.ListOrders(ctx, store.ListOrdersOpts{Symbol: symbol, Status: domain.OrderStatusNew})
	if err != nil {
		return nil, fmt.Errorf("list new orders: %w", err)
	}

	fillCandle, err := e.store.ExactCandle(ctx, symbol, timeframe, fillCandleOpenTime)
	if err != nil {
		return nil, fmt.Errorf("load fill candle: %w", err)
	}

	var fills []domain.Fill
	for _, o := range orders {
		if !isImmediatelyNext(o.TS, fillCandleOpenTime, timeframe) {
			continue
		}

		if existing, ferr := e.store.FindFillByOrderID(ctx, o.ID); ferr == nil && existing != nil {
			fills = append(fills, *existing)
			// A fill row can exist with the order still stranded on NEW if a
			// prior run crashed between the two writes; repair the status so
			// the order reaches its terminal state on retry.
			if o.Status != domain.OrderStatusFilled {
				if uerr := e.store.UpdateOrderStatus(ctx, nil, o.ID, domain.OrderStatusFilled, "filled at next open"); uerr != nil {
					return nil, uerr
				}
			}
			continue
		}

		if fillCandle == nil {
			return nil, fmt.Errorf("%w: missing fill candle %s %s at %s for order %d",
				domain.ErrDeterministicSafety, symbol, timeframe, fillCandleOpenTime, o.ID)
		}

		if !o.Side.Valid() || !o.Qty.IsPositive() {
			if uerr := e.store.UpdateOrderStatus(ctx, nil, o.ID, domain.OrderStatusRejected, "invalid side or qty"); uerr != nil {
				return nil, uerr
			}
			continue
		}

		price, perr := pricing.FillPrice(o.Side, fillCandle.Open, e.cfg.SpreadPips, e.cfg.SlippagePips, e.cfg.PipSize)
		if perr != nil {
			return nil, fmt.Errorf("compute fill price: %w", perr)
		}

		fill := domain.Fill{
			OrderID: o.ID,
			TS:      fillCandleOpenTime,
			Symbol:  symbol,
			Side:    o.Side,
			Qty:     o.Qty,
			Price:   price,
		}
		var created domain.Fill
		txErr := e.store.WithTx(ctx, func(tx *gorm.DB) error {
			var cerr error
			created, cerr = e.store.CreateFill(ctx, tx, fill)
			if cerr != nil {
				return fmt.Errorf("create fill: %w", cerr)
			}
			return e.store.UpdateOrderStatus(ctx, tx, o.ID, domain.OrderStatusFilled, "filled at next open")
		})
		if txErr != nil {
			return nil, txErr
		}
		fills = append(fills, created)
	}
	return fills, nil
}

// isImmediatelyNext reports whether candidate is the very next bar after
// orderTS on the given timeframe grid.
func isImmediatelyNext(orderTS, candidate time.Time, timeframe string) bool {
	step, ok := timeframeDuration(timeframe)
	if !ok {
		return candidate.After(orderTS)
	}
	next := orderTS.Add(step)
	return candidate.Equal(next)
}

func timeframeDuration(tf string) (time.Duration, bool) {
	switch tf {
	case "M1":
		return time.Minute, true
	case "M5":
		return 5 * time.Minute, true
	case "M15":
		return 15 * time.Minute, true
	case "M30":
		return 30 * time.Minute, true
	case "H1":
		return time.Hour, true
	case "H4":
		return 4 * time.Hour, true
	case "D1":
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
