// Package oms implements order placement, validation, and lifecycle
// management — the only write path into the order book.
package oms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/risk"
	"paperfx/internal/store"

	"github.com/shopspring/decimal"
)

// Config bounds what the OMS will accept.
type Config struct {
	MinQty         decimal.Decimal
	AllowedSymbols map[string]struct{}
	Timeframe      string
	SpreadPips     decimal.Decimal
	PipSize        decimal.Decimal
}

// Service is the order-management entry point.
type Service struct {
	store *store.Store
	risk  *risk.Engine
	cfg   Config
}

func New(st *store.Store, riskEngine *risk.Engine, cfg Config) *Service {
	return &Service{store: st, risk: riskEngine, cfg: cfg}
}

// PlaceRequest is the inbound market-order request.
type PlaceRequest struct {
	Symbol         string
	Side           domain.Side
	Qty            decimal.Decimal
	StopLoss       *decimal.Decimal
	TakeProfit     *decimal.Decimal
	IdempotencyKey string
}

// PlaceResult mirrors the order's outcome for the caller.
type PlaceResult struct {
	OrderID int64
	Status  domain.OrderStatus
	Reason  string
	FillID  *int64
}

// Place validates, risk-checks, and persists a market order. A prior
// order under the same idempotency key is returned unchanged; a payload
// mismatch against that prior order raises domain.ErrIdempotencyConflict.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	symbol := strings.ToUpper(req.Symbol)

	if req.IdempotencyKey != "" {
		existing, err := s.store.FindOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return PlaceResult{}, err
		}
		if existing != nil {
			if existing.Symbol != symbol || existing.Side != req.Side || !existing.Qty.Equal(req.Qty) {
				return PlaceResult{}, fmt.Errorf("%w: idempotency key %q previously claimed with a different payload", domain.ErrIdempotencyConflict, req.IdempotencyKey)
			}
			return s.resultFor(ctx, *existing)
		}
	}

	precheckReason := s.validatePayload(symbol, req.Qty)

	// A symbol outside the allowed set has no candles of its own, so its
	// REJECTED row takes its timestamp from an allowed symbol's latest candle.
	candleSymbol := symbol
	if _, ok := s.cfg.AllowedSymbols[symbol]; !ok {
		for allowed := range s.cfg.AllowedSymbols {
			if candleSymbol == symbol || allowed < candleSymbol {
				candleSymbol = allowed
			}
		}
	}

	candle, err := s.store.LatestCandle(ctx, candleSymbol, s.cfg.Timeframe)
	if err != nil {
		return PlaceResult{}, err
	}
	if candle == nil {
		return PlaceResult{}, fmt.Errorf("%w: no candle available for symbol=%s timeframe=%s", domain.ErrDeterministicSafety, candleSymbol, s.cfg.Timeframe)
	}

	if precheckReason != "" {
		order, cerr := s.store.CreateOrder(ctx, domain.Order{
			TS:             candle.OpenTime,
			Symbol:         symbol,
			Side:           req.Side,
			Qty:            req.Qty,
			Status:         domain.OrderStatusRejected,
			Reason:         precheckReason,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		})
		if cerr != nil {
			return PlaceResult{}, cerr
		}
		return PlaceResult{OrderID: order.ID, Status: order.Status, Reason: order.Reason}, nil
	}

	expectedFillPrice := candle.Open
	var stopDistancePips *decimal.Decimal
	if req.StopLoss != nil {
		d := expectedFillPrice.Sub(*req.StopLoss).Abs().Div(s.cfg.PipSize)
		stopDistancePips = &d
	}

	decision, err := s.risk.CheckOrder(ctx, 1, symbol, s.cfg.Timeframe, req.Side, req.Qty, stopDistancePips, candle.OpenTime, s.cfg.SpreadPips)
	if err != nil {
		return PlaceResult{}, err
	}
	if !decision.Allowed {
		reason := decision.Reason
		if reason == "" {
			reason = "Risk check rejected order"
		}
		order, cerr := s.store.CreateOrder(ctx, domain.Order{
			TS:             candle.OpenTime,
			Symbol:         symbol,
			Side:           req.Side,
			Qty:            req.Qty,
			Status:         domain.OrderStatusRejected,
			Reason:         reason,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		})
		if cerr != nil {
			return PlaceResult{}, cerr
		}
		return PlaceResult{OrderID: order.ID, Status: order.Status, Reason: order.Reason}, nil
	}

	order, err := s.store.CreateOrder(ctx, domain.Order{
		TS:             candle.OpenTime,
		Symbol:         symbol,
		Side:           req.Side,
		Qty:            decision.ApprovedQty,
		Status:         domain.OrderStatusNew,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return PlaceResult{}, err
	}

	return PlaceResult{OrderID: order.ID, Status: order.Status}, nil
}

func (s *Service) resultFor(ctx context.Context, o domain.Order) (PlaceResult, error) {
	res := PlaceResult{OrderID: o.ID, Status: o.Status, Reason: o.Reason}
	fill, err := s.store.FindFillByOrderID(ctx, o.ID)
	if err != nil {
		return PlaceResult{}, err
	}
	if fill != nil {
		res.FillID = &fill.ID
	}
	return res, nil
}

func (s *Service) validatePayload(symbol string, qty decimal.Decimal) string {
	if qty.LessThan(s.cfg.MinQty) {
		return fmt.Sprintf("qty below minimum %s", s.cfg.MinQty.String())
	}
	if _, ok := s.cfg.AllowedSymbols[symbol]; !ok {
		return fmt.Sprintf("symbol %s is not allowed", symbol)
	}
	return ""
}

// List returns orders matching opts.
func (s *Service) List(ctx context.Context, opts store.ListOrdersOpts) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, opts)
}

// Get returns a single order by id, including its fill id if filled.
func (s *Service) Get(ctx context.Context, id int64) (PlaceResult, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return PlaceResult{}, err
	}
	return s.resultFor(ctx, order)
}

// Cancel transitions a NEW order to CANCELED. Any other source state
// fails with domain.ErrInvalidStateTransition.
func (s *Service) Cancel(ctx context.Context, id int64) (PlaceResult, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return PlaceResult{}, err
	}
	if order.Status != domain.OrderStatusNew {
		return PlaceResult{}, fmt.Errorf("%w: only NEW orders can be canceled, order %d is %s", domain.ErrInvalidStateTransition, id, order.Status)
	}
	if err := s.store.UpdateOrderStatus(ctx, nil, id, domain.OrderStatusCanceled, "canceled_by_user"); err != nil {
		return PlaceResult{}, err
	}
	return PlaceResult{OrderID: id, Status: domain.OrderStatusCanceled, Reason: "canceled_by_user"}, nil
}
