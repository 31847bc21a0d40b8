package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperfx/internal/domain"
	gormmodel "paperfx/internal/store/model"

	"gorm.io/gorm"
)

func orderToModel(o domain.Order) gormmodel.OrderModel {
	return gormmodel.OrderModel{
		ID:             o.ID,
		TS:             o.TS.UTC(),
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Qty:            o.Qty,
		Status:         string(o.Status),
		Reason:         o.Reason,
		RequestedPrice: o.RequestedPrice,
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt.UTC(),
	}
}

func modelToOrder(m gormmodel.OrderModel) domain.Order {
	return domain.Order{
		ID:             m.ID,
		TS:             m.TS.UTC(),
		Symbol:         m.Symbol,
		Side:           domain.Side(m.Side),
		Qty:            m.Qty,
		Status:         domain.OrderStatus(m.Status),
		Reason:         m.Reason,
		RequestedPrice: m.RequestedPrice,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// FindOrderByIdempotencyKey returns the existing order for key, or nil if
// no order has been placed under it yet. An empty key never matches.
func (s *Store) FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	if key == "" {
		return nil, nil
	}
	var m gormmodel.OrderModel
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find order by idempotency key: %v", domain.ErrStoreUnavailable, err)
	}
	o := modelToOrder(m)
	return &o, nil
}

// CreateOrder inserts o with the status it carries (NEW, or REJECTED for
// an order refused before execution). If IdempotencyKey is set
// and already claimed, returns domain.ErrIdempotencyConflict wrapping the
// unique-constraint violation — callers should look the existing order up
// via FindOrderByIdempotencyKey rather than retry the insert.
func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := orderToModel(o)
	m.ID = 0
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueConstraintErr(err) {
			return domain.Order{}, fmt.Errorf("%w: idempotency key %q already claimed: %v", domain.ErrIdempotencyConflict, o.IdempotencyKey, err)
		}
		return domain.Order{}, fmt.Errorf("%w: create order: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToOrder(m), nil
}

// UpdateOrderStatus transitions an order's status and reason. Terminal
// statuses are not re-writable; callers must enforce transition legality
// before calling (the order-management layer owns that policy). Pass tx to
// fold the transition into a caller-managed transaction; nil uses the
// store's own connection.
func (s *Store) UpdateOrderStatus(ctx context.Context, tx *gorm.DB, id int64, status domain.OrderStatus, reason string) error {
	db := s.db
	if tx != nil {
		db = tx
	}
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	res := db.WithContext(ctx).Model(&gormmodel.OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "reason": reason})
	if res.Error != nil {
		return fmt.Errorf("%w: update order status: %v", domain.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
	}
	return nil
}

// GetOrder returns the order by id, or domain.ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.OrderModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Order{}, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: get order: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToOrder(m), nil
}

// ListOrdersOpts filters ListOrders.
type ListOrdersOpts struct {
	Symbol string
	Status domain.OrderStatus
	Since  *time.Time
	Limit  int
}

// ListOrders returns orders matching opts, newest first.
func (s *Store) ListOrders(ctx context.Context, opts ListOrdersOpts) ([]domain.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	q := s.db.WithContext(ctx).Model(&gormmodel.OrderModel{})
	if opts.Symbol != "" {
		q = q.Where("symbol = ?", opts.Symbol)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Since != nil {
		q = q.Where("ts >= ?", opts.Since.UTC())
	}
	q = q.Order("ts DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var rows []gormmodel.OrderModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToOrder(r))
	}
	return out, nil
}

func fillToModel(f domain.Fill) gormmodel.FillModel {
	return gormmodel.FillModel{
		ID:                  f.ID,
		OrderID:             f.OrderID,
		TS:                  f.TS.UTC(),
		Symbol:              f.Symbol,
		Side:                string(f.Side),
		Qty:                 f.Qty,
		Price:               f.Price,
		Fee:                 f.Fee,
		Slippage:            f.Slippage,
		AccountedAtOpenTime: f.AccountedAtOpenTime,
	}
}

func modelToFill(m gormmodel.FillModel) domain.Fill {
	return domain.Fill{
		ID:                  m.ID,
		OrderID:             m.OrderID,
		TS:                  m.TS.UTC(),
		Symbol:              m.Symbol,
		Side:                domain.Side(m.Side),
		Qty:                 m.Qty,
		Price:               m.Price,
		Fee:                 m.Fee,
		Slippage:            m.Slippage,
		AccountedAtOpenTime: m.AccountedAtOpenTime,
	}
}

// CreateFill inserts the single fill for an order. Orders are filled
// exactly once — one order, one fill — so order_id carries a unique
// index. Pass tx to write the fill and its order's status transition in
// one transaction; nil uses the store's own connection.
func (s *Store) CreateFill(ctx context.Context, tx *gorm.DB, f domain.Fill) (domain.Fill, error) {
	db := s.db
	if tx != nil {
		db = tx
	}
	if db == nil {
		return domain.Fill{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := fillToModel(f)
	m.ID = 0
	if err := db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Fill{}, fmt.Errorf("%w: create fill: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToFill(m), nil
}

// FindFillByOrderID returns the fill for orderID, or nil if the order
// hasn't been filled yet. Orders fill at most once, so this is the
// engine's retry-safety check.
func (s *Store) FindFillByOrderID(ctx context.Context, orderID int64) (*domain.Fill, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.FillModel
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find fill by order id: %v", domain.ErrStoreUnavailable, err)
	}
	f := modelToFill(m)
	return &f, nil
}

// UnaccountedFillsUpTo returns fills with accounted_at_open_time still
// NULL and ts <= asof, ordered by (ts, id) — the exact order the
// accounting engine must apply them in.
func (s *Store) UnaccountedFillsUpTo(ctx context.Context, asof time.Time) ([]domain.Fill, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var rows []gormmodel.FillModel
	err := s.db.WithContext(ctx).
		Where("accounted_at_open_time IS NULL AND ts <= ?", asof.UTC()).
		Order("ts ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: unaccounted fills: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Fill, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToFill(r))
	}
	return out, nil
}

// MarkFillAccounted stamps a fill's accounted_at_open_time. Must run in the
// same transaction as the position/account mutation it produced.
func (s *Store) MarkFillAccounted(ctx context.Context, tx *gorm.DB, fillID int64, asof time.Time) error {
	db := s.db
	if tx != nil {
		db = tx
	}
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	t := asof.UTC()
	res := db.WithContext(ctx).Model(&gormmodel.FillModel{}).
		Where("id = ?", fillID).
		Update("accounted_at_open_time", &t)
	if res.Error != nil {
		return fmt.Errorf("%w: mark fill accounted: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return nil
}

// WithTx runs fn inside a single database transaction, for callers (the
// accounting and execution engines) that must write several tables
// atomically.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
