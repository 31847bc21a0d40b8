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

func riskLimitsToModel(r domain.RiskLimits) gormmodel.RiskLimitsModel {
	return gormmodel.RiskLimitsModel{
		AccountID:                 r.AccountID,
		MaxOpenPositions:          r.MaxOpenPositions,
		MaxOpenPositionsPerSymbol: r.MaxOpenPositionsPerSymbol,
		MaxTotalNotional:          r.MaxTotalNotional,
		MaxSymbolNotional:         r.MaxSymbolNotional,
		RiskPerTradePct:           r.RiskPerTradePct,
		DailyLossLimitPct:         r.DailyLossLimitPct,
		DailyLossLimitAmount:      r.DailyLossLimitAmount,
		Leverage:                  r.Leverage,
		LotStep:                   r.LotStep,
	}
}

func modelToRiskLimits(m gormmodel.RiskLimitsModel) domain.RiskLimits {
	return domain.RiskLimits{
		AccountID:                 m.AccountID,
		MaxOpenPositions:          m.MaxOpenPositions,
		MaxOpenPositionsPerSymbol: m.MaxOpenPositionsPerSymbol,
		MaxTotalNotional:          m.MaxTotalNotional,
		MaxSymbolNotional:         m.MaxSymbolNotional,
		RiskPerTradePct:           m.RiskPerTradePct,
		DailyLossLimitPct:         m.DailyLossLimitPct,
		DailyLossLimitAmount:      m.DailyLossLimitAmount,
		Leverage:                  m.Leverage,
		LotStep:                   m.LotStep,
	}
}

// EnsureRiskLimits returns the account's risk limits, seeding them with
// defaults on first use. Risk limits are config-driven but persisted; an
// existing row is returned unchanged, and later config changes reach it
// only through SetRiskLimits.
func (s *Store) EnsureRiskLimits(ctx context.Context, defaults domain.RiskLimits) (domain.RiskLimits, error) {
	if s == nil || s.db == nil {
		return domain.RiskLimits{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.RiskLimitsModel
	err := s.db.WithContext(ctx).First(&m, "account_id = ?", defaults.AccountID).Error
	if err == nil {
		return modelToRiskLimits(m), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.RiskLimits{}, fmt.Errorf("%w: ensure risk limits: %v", domain.ErrStoreUnavailable, err)
	}
	m = riskLimitsToModel(defaults)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.RiskLimits{}, fmt.Errorf("%w: create risk limits: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToRiskLimits(m), nil
}

// SetRiskLimits overwrites the account's risk limits wholesale — the
// config watcher's subscription calls it with each validated snapshot.
func (s *Store) SetRiskLimits(ctx context.Context, r domain.RiskLimits) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := riskLimitsToModel(r)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"max_open_positions", "max_open_positions_per_symbol",
			"max_total_notional", "max_symbol_notional", "risk_per_trade_pct",
			"daily_loss_limit_pct", "daily_loss_limit_amount", "leverage", "lot_step",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: set risk limits: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func dailyEquityToModel(d domain.DailyEquityBaseline) gormmodel.DailyEquityModel {
	return gormmodel.DailyEquityModel{
		AccountID:      d.AccountID,
		Day:            d.Day.UTC(),
		DayStartEquity: d.DayStartEquity,
		MinEquity:      d.MinEquity,
	}
}

func modelToDailyEquity(m gormmodel.DailyEquityModel) domain.DailyEquityBaseline {
	return domain.DailyEquityBaseline{
		AccountID:      m.AccountID,
		Day:            m.Day.UTC(),
		DayStartEquity: m.DayStartEquity,
		MinEquity:      m.MinEquity,
	}
}

// EnsureDailyEquityBaseline returns the baseline row for (account, day),
// seeding it with openingEquity as both the start-of-day and running
// minimum if this is the first cycle seen for that UTC day.
func (s *Store) EnsureDailyEquityBaseline(ctx context.Context, tx *gorm.DB, accountID int64, day time.Time, openingEquity func() (decimal.Decimal, error)) (domain.DailyEquityBaseline, error) {
	db := s.dbOrTx(tx)
	if db == nil {
		return domain.DailyEquityBaseline{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	day = day.UTC().Truncate(24 * time.Hour)
	var m gormmodel.DailyEquityModel
	err := db.WithContext(ctx).
		Where("account_id = ? AND day = ?", accountID, day).
		Take(&m).Error
	if err == nil {
		return modelToDailyEquity(m), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.DailyEquityBaseline{}, fmt.Errorf("%w: ensure daily equity baseline: %v", domain.ErrStoreUnavailable, err)
	}
	startEquity, oerr := openingEquity()
	if oerr != nil {
		return domain.DailyEquityBaseline{}, oerr
	}
	m = gormmodel.DailyEquityModel{
		AccountID:      accountID,
		Day:            day,
		DayStartEquity: startEquity,
		MinEquity:      startEquity,
	}
	if err := db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.DailyEquityBaseline{}, fmt.Errorf("%w: create daily equity baseline: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToDailyEquity(m), nil
}

// UpdateDailyEquityMin lowers the running minimum-equity watermark for
// (account, day) if newEquity is below the stored minimum.
func (s *Store) UpdateDailyEquityMin(ctx context.Context, tx *gorm.DB, accountID int64, day time.Time, newEquity decimal.Decimal) error {
	db := s.dbOrTx(tx)
	if db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	day = day.UTC().Truncate(24 * time.Hour)
	res := db.WithContext(ctx).Model(&gormmodel.DailyEquityModel{}).
		Where("account_id = ? AND day = ? AND min_equity > ?", accountID, day, newEquity).
		Update("min_equity", newEquity)
	if res.Error != nil {
		return fmt.Errorf("%w: update daily equity minimum: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return nil
}
