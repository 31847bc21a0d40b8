package store

import (
	"context"
	"fmt"
	"time"

	"paperfx/internal/domain"
	gormmodel "paperfx/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func reportToModel(r domain.RunReport) gormmodel.RunReportModel {
	return gormmodel.RunReportModel{
		RunID:         r.RunID,
		Status:        string(r.Status),
		Symbol:        r.Symbol,
		Timeframe:     r.Timeframe,
		CandleTS:      r.CandleTS.UTC(),
		IntentJSON:    datatypes.JSON(r.IntentJSON),
		RiskJSON:      datatypes.JSON(r.RiskJSON),
		OrderJSON:     datatypes.JSON(r.OrderJSON),
		FillJSON:      datatypes.JSON(r.FillJSON),
		PositionsJSON: datatypes.JSON(r.PositionsJSON),
		AccountJSON:   datatypes.JSON(r.AccountJSON),
		SummaryText:   r.SummaryText,
		TelegramText:  r.TelegramText,
		ErrorText:     r.ErrorText,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func modelToReport(m gormmodel.RunReportModel) domain.RunReport {
	return domain.RunReport{
		RunID:         m.RunID,
		Status:        domain.RunStatus(m.Status),
		Symbol:        m.Symbol,
		Timeframe:     m.Timeframe,
		CandleTS:      m.CandleTS.UTC(),
		IntentJSON:    string(m.IntentJSON),
		RiskJSON:      string(m.RiskJSON),
		OrderJSON:     string(m.OrderJSON),
		FillJSON:      string(m.FillJSON),
		PositionsJSON: string(m.PositionsJSON),
		AccountJSON:   string(m.AccountJSON),
		SummaryText:   m.SummaryText,
		TelegramText:  m.TelegramText,
		ErrorText:     m.ErrorText,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// UpsertRunReport writes the report keyed by its natural identity
// (symbol, timeframe, candle_ts) — re-running the orchestrator for a
// candle it already processed overwrites the prior report rather than
// duplicating it, which is what makes a cycle safe to retry.
func (s *Store) UpsertRunReport(ctx context.Context, r domain.RunReport) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	m := reportToModel(r)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "candle_ts"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "status", "intent_json", "risk_json", "order_json",
			"fill_json", "positions_json", "account_json", "summary_text",
			"telegram_text", "error_text", "created_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: upsert run report: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// GetRunReportByRunID returns the report for a given run_id.
func (s *Store) GetRunReportByRunID(ctx context.Context, runID string) (domain.RunReport, error) {
	if s == nil || s.db == nil {
		return domain.RunReport{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.RunReportModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.RunReport{}, fmt.Errorf("%w: run report %s", domain.ErrNotFound, runID)
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("%w: get run report: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToReport(m), nil
}

// GetRunReportByCandle returns the report for (symbol, timeframe,
// candle_ts), or domain.ErrNotFound if the orchestrator hasn't processed
// that candle yet.
func (s *Store) GetRunReportByCandle(ctx context.Context, symbol, timeframe string, candleTS time.Time) (domain.RunReport, error) {
	if s == nil || s.db == nil {
		return domain.RunReport{}, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	var m gormmodel.RunReportModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND candle_ts = ?", symbol, timeframe, candleTS.UTC()).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.RunReport{}, fmt.Errorf("%w: run report for candle %s", domain.ErrNotFound, candleTS)
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("%w: get run report by candle: %v", domain.ErrStoreUnavailable, err)
	}
	return modelToReport(m), nil
}

// ListRunReportsOpts filters ListRunReports.
type ListRunReportsOpts struct {
	Symbol    string
	Timeframe string
	Status    domain.RunStatus
	Since     *time.Time
	Limit     int
}

// ListRunReports returns reports matching opts, newest candle first.
func (s *Store) ListRunReports(ctx context.Context, opts ListRunReportsOpts) ([]domain.RunReport, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStoreUnavailable)
	}
	q := s.db.WithContext(ctx).Model(&gormmodel.RunReportModel{})
	if opts.Symbol != "" {
		q = q.Where("symbol = ?", opts.Symbol)
	}
	if opts.Timeframe != "" {
		q = q.Where("timeframe = ?", opts.Timeframe)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Since != nil {
		q = q.Where("candle_ts >= ?", opts.Since.UTC())
	}
	q = q.Order("candle_ts DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var rows []gormmodel.RunReportModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list run reports: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.RunReport, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToReport(r))
	}
	return out, nil
}
