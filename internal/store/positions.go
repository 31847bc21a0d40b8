package store

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	gormmodel "paperfx/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func positionToModel(p domain.Position) gormmodel.PositionModel {
	return gormmodel.PositionModel{
		AccountID:       p.AccountID,
		Symbol:          p.Symbol,
		NetQty:          p.NetQty,
		AvgEntryPrice:   p.AvgEntryPrice,
		UpdatedOpenTime: p.UpdatedOpenTime.UTC(),
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		RealizedPnLCum:  p.RealizedPnLCum,
		EntryOrderID:    p.EntryOrderID,
	}
}

func modelToPosition(m gormmodel.PositionModel) domain.Position {
	return domain.Position{
		AccountID:       m.AccountID,
		Symbol:          m.Symbol,
		NetQty:          m.NetQty,
		AvgEntryPrice:   m.AvgEntryPrice,
		UpdatedOpenTime: m.UpdatedOpenTime.UTC(),
		StopLoss:        m.StopLoss,
		TakeProfit:      m.TakeProfit,
		RealizedPnLCum:  m.RealizedPnLCum,
		EntryOrderID:    m.EntryOrderID,
	}
}

// GetPosition returns the (account, symbol) position, or nil if the
// account has never held one — a flat position is not materialized until
// the first fill touches the symbol.
func (s *Store) GetPosition(ctx context.Context, tx *gorm.DB, accountID int64, symbol string) (*domain.Position, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.PositionModel
	err := db.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get position: %v", domain.ErrStoreUnavailable, err)
	}
	p := modelToPosition(m)
	return &p, nil
}

// UpsertPosition writes the full position row, replacing whatever was
// there for (account_id, symbol). The accounting engine always computes
// the full next state before calling this, so a blind upsert is correct.
func (s *Store) UpsertPosition(ctx context.Context, tx *gorm.DB, p domain.Position) error {
	db := s.dbOrTx(tx)
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := positionToModel(p)
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"net_qty", "avg_entry_price", "updated_open_time",
			"stop_loss", "take_profit", "realized_pnl_cum", "entry_order_id",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: upsert position: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListOpenPositions returns every non-flat position for accountID.
func (s *Store) ListOpenPositions(ctx context.Context, tx *gorm.DB, accountID int64) ([]domain.Position, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var rows []gormmodel.PositionModel
	if err := db.WithContext(ctx).Where("account_id = ? AND net_qty <> 0", accountID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list open positions: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		p := modelToPosition(r)
		if !p.IsFlat() {
			out = append(out, p)
		}
	}
	return out, nil
}

func tradeToModel(t domain.Trade) gormmodel.TradeModel {
	return gormmodel.TradeModel{
		ID:           t.ID,
		EntryTS:      t.EntryTS.UTC(),
		ExitTS:       t.ExitTS.UTC(),
		Symbol:       t.Symbol,
		Qty:          t.Qty,
		EntryPrice:   t.EntryPrice,
		ExitPrice:    t.ExitPrice,
		PnL:          t.PnL,
		ExitReason:   string(t.ExitReason),
		EntryOrderID: t.EntryOrderID,
		ExitOrderID:  t.ExitOrderID,
	}
}

func modelToTrade(m gormmodel.TradeModel) domain.Trade {
	return domain.Trade{
		ID:           m.ID,
		EntryTS:      m.EntryTS.UTC(),
		ExitTS:       m.ExitTS.UTC(),
		Symbol:       m.Symbol,
		Qty:          m.Qty,
		EntryPrice:   m.EntryPrice,
		ExitPrice:    m.ExitPrice,
		PnL:          m.PnL,
		ExitReason:   domain.ExitReason(m.ExitReason),
		EntryOrderID: m.EntryOrderID,
		ExitOrderID:  m.ExitOrderID,
	}
}

// CreateTrade appends a closed-lot record (full close, partial close, or
// flip) produced by the accounting engine's netting logic.
func (s *Store) CreateTrade(ctx context.Context, tx *gorm.DB, t domain.Trade) (domain.Trade, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return domain.Trade{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := tradeToModel(t)
	m.ID = 0
	if err := db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Trade{}, fmt.Errorf("%w: create trade: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToTrade(m), nil
}

// ListTrades returns closed trades for symbol (all symbols if empty),
// newest first.
func (s *Store) ListTrades(ctx context.Context, symbol string, since *time.Time, limit int) ([]domain.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	q := s.db.WithContext(ctx).Model(&gormmodel.TradeModel{})
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if since != nil {
		q = q.Where("exit_ts >= ?", since.UTC())
	}
	q = q.Order("exit_ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []gormmodel.TradeModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list trades: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToTrade(r))
	}
	return out, nil
}

// dbOrTx lets accounting-engine callers thread a single transaction
// through several store calls, while simpler read paths can pass a nil tx
// and use the store's own handle.
func (s *Store) dbOrTx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	if s == nil {
		return nil
	}
	return s.db
}
