package config

import "strings"

// Config is the paper-trading engine's top-level configuration.
type Config struct {
	App        AppConfig        `toml:"app"`
	Instrument InstrumentConfig `toml:"instrument"`
	Account    AccountConfig    `toml:"account"`
	Pricing    PricingConfig    `toml:"pricing"`
	Risk       RiskConfig       `toml:"risk"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Ingestion  IngestionConfig  `toml:"ingestion"`
	Retention  RetentionConfig  `toml:"retention"`
	Control    ControlConfig    `toml:"control"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	DBPath   string `toml:"db_path"`
}

// InstrumentConfig identifies the single symbol/timeframe this process
// runs against. Changing either requires a restart — the orchestrator
// and the scheduler are both built around them at startup.
type InstrumentConfig struct {
	Symbol    string `toml:"symbol"`
	Timeframe string `toml:"timeframe"`
}

type AccountConfig struct {
	StartingBalance float64 `toml:"starting_balance"`
	Currency        string  `toml:"currency"`
}

type PricingConfig struct {
	SpreadPips   float64 `toml:"spread_pips"`
	SlippagePips float64 `toml:"slippage_pips"`
	PipSize      float64 `toml:"pip_size"`
	ContractSize float64 `toml:"contract_size"`
}

// RiskConfig is hot-reloadable: the config file watcher pushes updated
// limits to the store without restarting the process.
type RiskConfig struct {
	MaxOpenPositions          int     `toml:"max_open_positions"`
	MaxOpenPositionsPerSymbol int     `toml:"max_open_positions_per_symbol"`
	MaxTotalNotional          float64 `toml:"max_total_notional"`
	MaxSymbolNotional         float64 `toml:"max_symbol_notional"`
	RiskPerTradePct           float64 `toml:"risk_per_trade_pct"`
	DailyLossLimitPct         float64 `toml:"daily_loss_limit_pct"`
	DailyLossLimitAmount      float64 `toml:"daily_loss_limit_amount"`
	Leverage                  float64 `toml:"leverage"`
	LotStep                   float64 `toml:"lot_step"`
}

type StrategyConfig struct {
	Name            string             `toml:"name"`
	Params          map[string]float64 `toml:"params"`
	CooldownCandles int                `toml:"cooldown_candles"`
	WindowSize      int                `toml:"window_size"`
}

type IngestionConfig struct {
	Provider            string `toml:"provider"`
	OverlapCandles      int    `toml:"overlap_candles"`
	InitialBackfillDays int    `toml:"initial_backfill_days"`
	IntegrityWindowDays int    `toml:"integrity_window_days"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// RetentionConfig is hot-reloadable alongside RiskConfig.
type RetentionConfig struct {
	Days              int `toml:"days"`
	PruneIntervalHours int `toml:"prune_interval_hours"`
}

type ControlConfig struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// keySet tracks which dotted config keys were explicitly set in a file,
// so applyDefaults never overwrites an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes one field's conditional default-fill rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
