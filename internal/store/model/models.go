// Package model holds the gorm row models backing the candle store, the
// order/fill/position ledger, and the orchestrator's run reports. Money
// fields use shopspring/decimal.Decimal directly as gorm columns (the type
// implements sql.Scanner/driver.Valuer, stored as TEXT) so replay stays
// byte-exact instead of drifting through float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CandleModel struct {
	ID         int64           `gorm:"column:id;primaryKey"`
	Symbol     string          `gorm:"column:symbol;uniqueIndex:idx_candle_key,priority:1"`
	Timeframe  string          `gorm:"column:timeframe;uniqueIndex:idx_candle_key,priority:2"`
	OpenTime   time.Time       `gorm:"column:open_time;uniqueIndex:idx_candle_key,priority:3"`
	Open       decimal.Decimal `gorm:"column:open;type:TEXT"`
	High       decimal.Decimal `gorm:"column:high;type:TEXT"`
	Low        decimal.Decimal `gorm:"column:low;type:TEXT"`
	Close      decimal.Decimal `gorm:"column:close;type:TEXT"`
	Volume     decimal.Decimal `gorm:"column:volume;type:TEXT"`
	Source     string          `gorm:"column:source"`
	IngestedAt time.Time       `gorm:"column:ingested_at"`
}

func (CandleModel) TableName() string { return "candles" }

type AccountModel struct {
	ID         int64           `gorm:"column:id;primaryKey"`
	Balance    decimal.Decimal `gorm:"column:balance;type:TEXT"`
	Equity     decimal.Decimal `gorm:"column:equity;type:TEXT"`
	MarginUsed decimal.Decimal `gorm:"column:margin_used;type:TEXT"`
	FreeMargin decimal.Decimal `gorm:"column:free_margin;type:TEXT"`
	Currency   string          `gorm:"column:currency"`
	Leverage   decimal.Decimal `gorm:"column:leverage;type:TEXT"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string { return "accounts" }

type OrderModel struct {
	ID             int64           `gorm:"column:id;primaryKey"`
	TS             time.Time       `gorm:"column:ts"`
	Symbol         string          `gorm:"column:symbol;index"`
	Side           string          `gorm:"column:side"`
	Qty            decimal.Decimal `gorm:"column:qty;type:TEXT"`
	Status         string          `gorm:"column:status;index"`
	Reason         string          `gorm:"column:reason"`
	RequestedPrice decimal.Decimal `gorm:"column:requested_price;type:TEXT"`
	IdempotencyKey string          `gorm:"column:idempotency_key;uniqueIndex:idx_order_idem,where:idempotency_key <> ''"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "orders" }

type FillModel struct {
	ID                  int64           `gorm:"column:id;primaryKey"`
	OrderID              int64           `gorm:"column:order_id;uniqueIndex"`
	TS                   time.Time       `gorm:"column:ts"`
	Symbol               string          `gorm:"column:symbol;index"`
	Side                 string          `gorm:"column:side"`
	Qty                  decimal.Decimal `gorm:"column:qty;type:TEXT"`
	Price                decimal.Decimal `gorm:"column:price;type:TEXT"`
	Fee                  decimal.Decimal `gorm:"column:fee;type:TEXT"`
	Slippage             decimal.Decimal `gorm:"column:slippage;type:TEXT"`
	AccountedAtOpenTime  *time.Time      `gorm:"column:accounted_at_open_time"`
}

func (FillModel) TableName() string { return "fills" }

type PositionModel struct {
	AccountID       int64           `gorm:"column:account_id;primaryKey"`
	Symbol          string          `gorm:"column:symbol;primaryKey"`
	NetQty          decimal.Decimal `gorm:"column:net_qty;type:TEXT"`
	AvgEntryPrice   decimal.Decimal `gorm:"column:avg_entry_price;type:TEXT"`
	UpdatedOpenTime time.Time       `gorm:"column:updated_open_time"`
	StopLoss        *decimal.Decimal `gorm:"column:stop_loss;type:TEXT"`
	TakeProfit      *decimal.Decimal `gorm:"column:take_profit;type:TEXT"`
	RealizedPnLCum  decimal.Decimal `gorm:"column:realized_pnl_cum;type:TEXT"`
	EntryOrderID    *int64          `gorm:"column:entry_order_id"`
}

func (PositionModel) TableName() string { return "positions" }

type TradeModel struct {
	ID           int64           `gorm:"column:id;primaryKey"`
	EntryTS      time.Time       `gorm:"column:entry_ts"`
	ExitTS       time.Time       `gorm:"column:exit_ts"`
	Symbol       string          `gorm:"column:symbol;index"`
	Qty          decimal.Decimal `gorm:"column:qty;type:TEXT"`
	EntryPrice   decimal.Decimal `gorm:"column:entry_price;type:TEXT"`
	ExitPrice    decimal.Decimal `gorm:"column:exit_price;type:TEXT"`
	PnL          decimal.Decimal `gorm:"column:pnl;type:TEXT"`
	ExitReason   string          `gorm:"column:exit_reason"`
	EntryOrderID int64           `gorm:"column:entry_order_id"`
	ExitOrderID  int64           `gorm:"column:exit_order_id"`
}

func (TradeModel) TableName() string { return "trades" }

type AccountSnapshotModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	AccountID     int64           `gorm:"column:account_id;uniqueIndex:idx_snapshot_key,priority:1"`
	AsOfOpenTime  time.Time       `gorm:"column:asof_open_time;uniqueIndex:idx_snapshot_key,priority:2"`
	Balance       decimal.Decimal `gorm:"column:balance;type:TEXT"`
	Equity        decimal.Decimal `gorm:"column:equity;type:TEXT"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:TEXT"`
	MarginUsed    decimal.Decimal `gorm:"column:margin_used;type:TEXT"`
	FreeMargin    decimal.Decimal `gorm:"column:free_margin;type:TEXT"`
}

func (AccountSnapshotModel) TableName() string { return "account_snapshots" }

type RiskLimitsModel struct {
	AccountID                 int64           `gorm:"column:account_id;primaryKey"`
	MaxOpenPositions          int             `gorm:"column:max_open_positions"`
	MaxOpenPositionsPerSymbol int             `gorm:"column:max_open_positions_per_symbol"`
	MaxTotalNotional          decimal.Decimal `gorm:"column:max_total_notional;type:TEXT"`
	MaxSymbolNotional         decimal.Decimal `gorm:"column:max_symbol_notional;type:TEXT"`
	RiskPerTradePct           decimal.Decimal `gorm:"column:risk_per_trade_pct;type:TEXT"`
	DailyLossLimitPct         decimal.Decimal `gorm:"column:daily_loss_limit_pct;type:TEXT"`
	DailyLossLimitAmount      decimal.Decimal `gorm:"column:daily_loss_limit_amount;type:TEXT"`
	Leverage                  decimal.Decimal `gorm:"column:leverage;type:TEXT"`
	LotStep                   decimal.Decimal `gorm:"column:lot_step;type:TEXT"`
}

func (RiskLimitsModel) TableName() string { return "risk_limits" }

type DailyEquityModel struct {
	AccountID      int64           `gorm:"column:account_id;uniqueIndex:idx_daily_equity,priority:1"`
	Day            time.Time       `gorm:"column:day;uniqueIndex:idx_daily_equity,priority:2"`
	DayStartEquity decimal.Decimal `gorm:"column:day_start_equity;type:TEXT"`
	MinEquity      decimal.Decimal `gorm:"column:min_equity;type:TEXT"`
}

func (DailyEquityModel) TableName() string { return "daily_equity_baselines" }

type RunReportModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;uniqueIndex"`
	Status        string         `gorm:"column:status"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex:idx_report_key,priority:1"`
	Timeframe     string         `gorm:"column:timeframe;uniqueIndex:idx_report_key,priority:2"`
	CandleTS      time.Time      `gorm:"column:candle_ts;uniqueIndex:idx_report_key,priority:3"`
	IntentJSON    datatypes.JSON `gorm:"column:intent_json;type:TEXT"`
	RiskJSON      datatypes.JSON `gorm:"column:risk_json;type:TEXT"`
	OrderJSON     datatypes.JSON `gorm:"column:order_json;type:TEXT"`
	FillJSON      datatypes.JSON `gorm:"column:fill_json;type:TEXT"`
	PositionsJSON datatypes.JSON `gorm:"column:positions_json;type:TEXT"`
	AccountJSON   datatypes.JSON `gorm:"column:account_json;type:TEXT"`
	SummaryText   string         `gorm:"column:summary_text"`
	TelegramText  string         `gorm:"column:telegram_text"`
	ErrorText     string         `gorm:"column:error_text"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (RunReportModel) TableName() string { return "run_reports" }
