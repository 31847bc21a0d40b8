// Package domain holds the engine's core entity types. It has no storage or
// transport dependencies: everything here is a plain value type shared by
// every component described in SPEC_FULL.md.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order or fill direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for BUY, -1 for SELL.
func (s Side) Sign() int {
	if s == SideBuy {
		return 1
	}
	return -1
}

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Terminal reports whether the status cannot transition further.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCanceled
}

// RunStatus is the outcome of one orchestrator cycle.
type RunStatus string

const (
	RunStatusOK    RunStatus = "OK"
	RunStatusNOOP  RunStatus = "NOOP"
	RunStatusError RunStatus = "ERROR"
)

// Action is the strategy's proposed action for a candle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionClose Action = "CLOSE"
)

// ExitReason classifies why a Trade's lot was closed.
type ExitReason string

const (
	ExitReasonStopLoss   ExitReason = "SL"
	ExitReasonTakeProfit ExitReason = "TP"
	ExitReasonManual     ExitReason = "MANUAL"
	ExitReasonFlip       ExitReason = "FLIP"
)

// Candle is a single closed OHLCV bar.
type Candle struct {
	Symbol     string
	Timeframe  string
	OpenTime   time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Source     string
	IngestedAt time.Time
}

// ValidOHLC reports whether the bar satisfies the OHLC sanity invariant.
func (c Candle) ValidOHLC() bool {
	maxOC := decimal.Max(c.Open, c.Close)
	minOC := decimal.Min(c.Open, c.Close)
	return c.High.GreaterThanOrEqual(maxOC) && c.High.GreaterThanOrEqual(c.Low) &&
		c.Low.LessThanOrEqual(minOC)
}

// Account is the singleton paper-trading account.
type Account struct {
	ID          int64
	Balance     decimal.Decimal
	Equity      decimal.Decimal
	MarginUsed  decimal.Decimal
	FreeMargin  decimal.Decimal
	Currency    string
	Leverage    decimal.Decimal
	UpdatedAt   time.Time
}

// Order is a paper market order.
type Order struct {
	ID              int64
	TS              time.Time
	Symbol          string
	Side            Side
	Qty             decimal.Decimal
	Status          OrderStatus
	Reason          string
	RequestedPrice  decimal.Decimal
	IdempotencyKey  string
	CreatedAt       time.Time
}

// Fill is the single execution record for an Order.
type Fill struct {
	ID                 int64
	OrderID            int64
	TS                 time.Time
	Symbol             string
	Side               Side
	Qty                decimal.Decimal
	Price              decimal.Decimal
	Fee                decimal.Decimal
	Slippage           decimal.Decimal
	AccountedAtOpenTime *time.Time
}

// Position is the netting position for one account+symbol pair.
type Position struct {
	AccountID        int64
	Symbol           string
	NetQty           decimal.Decimal // signed: positive long, negative short
	AvgEntryPrice    decimal.Decimal
	UpdatedOpenTime  time.Time
	StopLoss         *decimal.Decimal
	TakeProfit       *decimal.Decimal
	RealizedPnLCum   decimal.Decimal
	EntryOrderID     *int64
}

// IsFlat reports whether the position carries no quantity.
func (p Position) IsFlat() bool {
	return p.NetQty.IsZero()
}

// Trade is a closed lot.
type Trade struct {
	ID           int64
	EntryTS      time.Time
	ExitTS       time.Time
	Symbol       string
	Qty          decimal.Decimal
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	PnL          decimal.Decimal
	ExitReason   ExitReason
	EntryOrderID int64
	ExitOrderID  int64
}

// AccountSnapshot is a mark-to-market record at a given candle time.
type AccountSnapshot struct {
	ID             int64
	AccountID      int64
	AsOfOpenTime   time.Time
	Balance        decimal.Decimal
	Equity         decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	MarginUsed     decimal.Decimal
	FreeMargin     decimal.Decimal
}

// RiskLimits is per-account risk tuning.
type RiskLimits struct {
	AccountID                  int64
	MaxOpenPositions           int
	MaxOpenPositionsPerSymbol  int
	MaxTotalNotional           decimal.Decimal
	MaxSymbolNotional          decimal.Decimal
	RiskPerTradePct            decimal.Decimal
	DailyLossLimitPct          decimal.Decimal
	DailyLossLimitAmount       decimal.Decimal
	Leverage                   decimal.Decimal
	LotStep                    decimal.Decimal
}

// DailyEquityBaseline tracks the start-of-day equity watermark used by the
// daily-loss breach check.
type DailyEquityBaseline struct {
	AccountID      int64
	Day            time.Time // truncated to UTC midnight
	DayStartEquity decimal.Decimal
	MinEquity      decimal.Decimal
}

// RiskSnapshot is the read model returned by the risk engine's compute step.
type RiskSnapshot struct {
	AccountID               int64
	AsOfOpenTime            time.Time
	Day                     time.Time
	Balance                 decimal.Decimal
	Equity                  decimal.Decimal
	MarginUsed              decimal.Decimal
	FreeMargin              decimal.Decimal
	OpenPositionsCount      int
	OpenPositionsPerSymbol  int
	NotionalPerSymbol       decimal.Decimal
	TotalNotional           decimal.Decimal
	DayStartEquity          decimal.Decimal
	MinEquity               decimal.Decimal
	DailyLossBreached       bool
}

// RiskDecision is the outcome of a pre-trade check.
type RiskDecision struct {
	Allowed     bool
	ApprovedQty decimal.Decimal
	Reason      string
	Snapshot    RiskSnapshot
}

// StrategyIndicators are the indicator readings behind an intent.
type StrategyIndicators struct {
	EMAFast *decimal.Decimal
	EMASlow *decimal.Decimal
	ATR     *decimal.Decimal
}

// StrategyRiskHints are optional suggested protective levels.
type StrategyRiskHints struct {
	StopLossPrice   *decimal.Decimal
	TakeProfitPrice *decimal.Decimal
}

// StrategyIntent is the pure output of the strategy engine for one window.
type StrategyIntent struct {
	Action     Action
	Reason     string
	Symbol     string
	Timeframe  string
	TS         time.Time
	Indicators StrategyIndicators
	RiskHints  StrategyRiskHints
	Summary    string
}

// Gap is a maximal contiguous run of missing candle slots.
type Gap struct {
	FirstMissingOpenTime time.Time
	LastMissingOpenTime  time.Time
}

// IntegrityReport is the result of a gap/duplicate scan over a window.
type IntegrityReport struct {
	Symbol          string
	Timeframe       string
	Earliest        *time.Time
	Latest          *time.Time
	ExpectedCount   int
	ActualCount     int
	DuplicatesCount int
	MissingRanges   []Gap
	IsComplete      bool
}

// RunReport is the persisted, auditable record of one orchestrator cycle.
type RunReport struct {
	RunID         string
	Status        RunStatus
	Symbol        string
	Timeframe     string
	CandleTS      time.Time
	IntentJSON    string
	RiskJSON      string
	OrderJSON     string
	FillJSON      string
	PositionsJSON string
	AccountJSON   string
	SummaryText   string
	TelegramText  string
	ErrorText     string
	CreatedAt     time.Time
}
