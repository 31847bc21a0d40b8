package store

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	gormmodel "paperfx/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func accountToModel(a domain.Account) gormmodel.AccountModel {
	return gormmodel.AccountModel{
		ID:         a.ID,
		Balance:    a.Balance,
		Equity:     a.Equity,
		MarginUsed: a.MarginUsed,
		FreeMargin: a.FreeMargin,
		Currency:   a.Currency,
		Leverage:   a.Leverage,
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func modelToAccount(m gormmodel.AccountModel) domain.Account {
	return domain.Account{
		ID:         m.ID,
		Balance:    m.Balance,
		Equity:     m.Equity,
		MarginUsed: m.MarginUsed,
		FreeMargin: m.FreeMargin,
		Currency:   m.Currency,
		Leverage:   m.Leverage,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

// singletonAccountID is the engine's one paper account. The spec models a
// single instrument and a single account; there is no multi-tenant
// identity layer.
const singletonAccountID int64 = 1

// EnsureAccount returns the singleton account, creating it with the given
// starting balance if it doesn't exist yet.
func (s *Store) EnsureAccount(ctx context.Context, startingBalance decimal.Decimal, currency string, leverage decimal.Decimal) (domain.Account, error) {
	if s == nil || s.db == nil {
		return domain.Account{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.AccountModel
	err := s.db.WithContext(ctx).First(&m, singletonAccountID).Error
	if err == nil {
		return modelToAccount(m), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.Account{}, fmt.Errorf("%w: ensure account: %v", domain.ErrStoreUnavailable, err)
	}
	m = gormmodel.AccountModel{
		ID:         singletonAccountID,
		Balance:    startingBalance,
		Equity:     startingBalance,
		MarginUsed: decimal.Zero,
		FreeMargin: startingBalance,
		Currency:   currency,
		Leverage:   leverage,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Account{}, fmt.Errorf("%w: create account: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToAccount(m), nil
}

// GetAccount returns the singleton account.
func (s *Store) GetAccount(ctx context.Context, tx *gorm.DB) (domain.Account, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return domain.Account{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.AccountModel
	if err := db.WithContext(ctx).First(&m, singletonAccountID).Error; err != nil {
		return domain.Account{}, fmt.Errorf("%w: get account: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToAccount(m), nil
}

// UpdateAccount writes the account's mutable fields (balance moves on
// realized PnL, equity/margin move on every mark-to-market).
func (s *Store) UpdateAccount(ctx context.Context, tx *gorm.DB, a domain.Account) error {
	db := s.dbOrTx(tx)
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := accountToModel(a)
	m.ID = singletonAccountID
	m.UpdatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Model(&gormmodel.AccountModel{}).Where("id = ?", singletonAccountID).
		Updates(map[string]interface{}{
			"balance":     m.Balance,
			"equity":      m.Equity,
			"margin_used": m.MarginUsed,
			"free_margin": m.FreeMargin,
			"updated_at":  m.UpdatedAt,
		}).Error; err != nil {
		return fmt.Errorf("%w: update account: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func snapshotToModel(s domain.AccountSnapshot) gormmodel.AccountSnapshotModel {
	return gormmodel.AccountSnapshotModel{
		ID:            s.ID,
		AccountID:     s.AccountID,
		AsOfOpenTime:  s.AsOfOpenTime.UTC(),
		Balance:       s.Balance,
		Equity:        s.Equity,
		UnrealizedPnL: s.UnrealizedPnL,
		MarginUsed:    s.MarginUsed,
		FreeMargin:    s.FreeMargin,
	}
}

func modelToSnapshot(m gormmodel.AccountSnapshotModel) domain.AccountSnapshot {
	return domain.AccountSnapshot{
		ID:            m.ID,
		AccountID:     m.AccountID,
		AsOfOpenTime:  m.AsOfOpenTime.UTC(),
		Balance:       m.Balance,
		Equity:        m.Equity,
		UnrealizedPnL: m.UnrealizedPnL,
		MarginUsed:    m.MarginUsed,
		FreeMargin:    m.FreeMargin,
	}
}

// UpsertAccountSnapshot writes (or idempotently replaces) the
// mark-to-market snapshot for (account_id, asof_open_time) — re-running a
// cycle for a candle already snapshotted just overwrites with the same
// inputs.
func (s *Store) UpsertAccountSnapshot(ctx context.Context, tx *gorm.DB, snap domain.AccountSnapshot) error {
	db := s.dbOrTx(tx)
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := snapshotToModel(snap)
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "asof_open_time"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance", "equity", "unrealized_pnl", "margin_used", "free_margin",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: upsert account snapshot: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// LatestAccountSnapshot returns the most recent snapshot for accountID, or
// nil if none exists yet.
func (s *Store) LatestAccountSnapshot(ctx context.Context, accountID int64) (*domain.AccountSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.AccountSnapshotModel
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("asof_open_time DESC").
		Limit(1).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest account snapshot: %v", domain.ErrStoreUnavailable, err)
	}
	snap := modelToSnapshot(m)
	return &snap, nil
}

// SnapshotExistsAt reports whether a snapshot already exists for
// (account_id, asof_open_time). Mark-to-market does not call it; it
// upserts the snapshot for the candle instead.
func (s *Store) SnapshotExistsAt(ctx context.Context, tx *gorm.DB, accountID int64, asof time.Time) (bool, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return false, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var count int64
	err := db.WithContext(ctx).Model(&gormmodel.AccountSnapshotModel{}).
		Where("account_id = ? AND asof_open_time = ?", accountID, asof.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: snapshot existence check: %v", domain.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}
