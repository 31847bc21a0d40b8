package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":8080"
	defaultAppLogPath  = "/data/logs/paperfx.log"
	defaultAppDBPath   = "/data/db/paperfx.db"

	defaultInstrumentSymbol    = "EURUSD"
	defaultInstrumentTimeframe = "H1"

	defaultAccountBalance = 100000
	defaultAccountCcy     = "USD"

	defaultSpreadPips   = 1.0
	defaultSlippagePips = 0.2
	defaultPipSize      = 0.0001
	defaultContractSize = 100000

	defaultMaxOpenPositions          = 5
	defaultMaxOpenPositionsPerSymbol = 1
	defaultMaxTotalNotional          = 500000
	defaultMaxSymbolNotional         = 200000
	defaultRiskPerTradePct           = 0.01
	defaultDailyLossLimitPct         = 0.05
	defaultLeverage                  = 30
	defaultLotStep                   = 0.01

	defaultStrategyName       = "ema_atr"
	defaultCooldownCandles    = 3
	defaultWindowSize         = 200

	defaultIngestionProvider       = "mock"
	defaultOverlapCandles          = 3
	defaultInitialBackfillDays     = 90
	defaultIntegrityWindowDays     = 14
	defaultPollIntervalSeconds     = 30

	defaultRetentionDays         = 365
	defaultPruneIntervalHours    = 24

	defaultControlTimeoutSeconds = 2
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Instrument.applyDefaults(keys)
	c.Account.applyDefaults(keys)
	c.Pricing.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Ingestion.applyDefaults(keys)
	c.Retention.applyDefaults(keys)
	c.Control.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
	)
}

func (i *InstrumentConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("instrument.symbol", &i.Symbol, defaultInstrumentSymbol),
		stringFieldDefault("instrument.timeframe", &i.Timeframe, defaultInstrumentTimeframe),
	)
	i.Symbol = strings.ToUpper(strings.TrimSpace(i.Symbol))
	i.Timeframe = strings.ToUpper(strings.TrimSpace(i.Timeframe))
}

func (a *AccountConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{key: "account.starting_balance", need: func() bool { return a.StartingBalance <= 0 }, apply: func() { a.StartingBalance = defaultAccountBalance }},
		stringFieldDefault("account.currency", &a.Currency, defaultAccountCcy),
	)
}

func (p *PricingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{key: "pricing.spread_pips", need: func() bool { return p.SpreadPips <= 0 }, apply: func() { p.SpreadPips = defaultSpreadPips }},
		fieldDefault{key: "pricing.slippage_pips", need: func() bool { return p.SlippagePips < 0 }, apply: func() { p.SlippagePips = defaultSlippagePips }},
		fieldDefault{key: "pricing.pip_size", need: func() bool { return p.PipSize <= 0 }, apply: func() { p.PipSize = defaultPipSize }},
		fieldDefault{key: "pricing.contract_size", need: func() bool { return p.ContractSize <= 0 }, apply: func() { p.ContractSize = defaultContractSize }},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{key: "risk.max_open_positions", need: func() bool { return r.MaxOpenPositions <= 0 }, apply: func() { r.MaxOpenPositions = defaultMaxOpenPositions }},
		fieldDefault{key: "risk.max_open_positions_per_symbol", need: func() bool { return r.MaxOpenPositionsPerSymbol <= 0 }, apply: func() { r.MaxOpenPositionsPerSymbol = defaultMaxOpenPositionsPerSymbol }},
		fieldDefault{key: "risk.max_total_notional", need: func() bool { return r.MaxTotalNotional <= 0 }, apply: func() { r.MaxTotalNotional = defaultMaxTotalNotional }},
		fieldDefault{key: "risk.max_symbol_notional", need: func() bool { return r.MaxSymbolNotional <= 0 }, apply: func() { r.MaxSymbolNotional = defaultMaxSymbolNotional }},
		fieldDefault{key: "risk.risk_per_trade_pct", need: func() bool { return r.RiskPerTradePct <= 0 }, apply: func() { r.RiskPerTradePct = defaultRiskPerTradePct }},
		fieldDefault{key: "risk.daily_loss_limit_pct", need: func() bool { return r.DailyLossLimitPct < 0 }, apply: func() { r.DailyLossLimitPct = defaultDailyLossLimitPct }},
		fieldDefault{key: "risk.leverage", need: func() bool { return r.Leverage <= 0 }, apply: func() { r.Leverage = defaultLeverage }},
		fieldDefault{key: "risk.lot_step", need: func() bool { return r.LotStep <= 0 }, apply: func() { r.LotStep = defaultLotStep }},
	)
	if r.DailyLossLimitAmount < 0 {
		r.DailyLossLimitAmount = 0
	}
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.name", &s.Name, defaultStrategyName),
		fieldDefault{key: "strategy.cooldown_candles", need: func() bool { return s.CooldownCandles < 0 }, apply: func() { s.CooldownCandles = defaultCooldownCandles }},
		fieldDefault{key: "strategy.window_size", need: func() bool { return s.WindowSize <= 0 }, apply: func() { s.WindowSize = defaultWindowSize }},
	)
	if s.Params == nil {
		s.Params = make(map[string]float64)
	}
}

func (i *IngestionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("ingestion.provider", &i.Provider, defaultIngestionProvider),
		fieldDefault{key: "ingestion.overlap_candles", need: func() bool { return i.OverlapCandles <= 0 }, apply: func() { i.OverlapCandles = defaultOverlapCandles }},
		fieldDefault{key: "ingestion.initial_backfill_days", need: func() bool { return i.InitialBackfillDays <= 0 }, apply: func() { i.InitialBackfillDays = defaultInitialBackfillDays }},
		fieldDefault{key: "ingestion.integrity_window_days", need: func() bool { return i.IntegrityWindowDays <= 0 }, apply: func() { i.IntegrityWindowDays = defaultIntegrityWindowDays }},
		fieldDefault{key: "ingestion.poll_interval_seconds", need: func() bool { return i.PollIntervalSeconds <= 0 }, apply: func() { i.PollIntervalSeconds = defaultPollIntervalSeconds }},
	)
}

func (r *RetentionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{key: "retention.days", need: func() bool { return r.Days <= 0 }, apply: func() { r.Days = defaultRetentionDays }},
		fieldDefault{key: "retention.prune_interval_hours", need: func() bool { return r.PruneIntervalHours <= 0 }, apply: func() { r.PruneIntervalHours = defaultPruneIntervalHours }},
	)
}

func (c *ControlConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{key: "control.request_timeout_seconds", need: func() bool { return c.RequestTimeoutSeconds <= 0 }, apply: func() { c.RequestTimeoutSeconds = defaultControlTimeoutSeconds }},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
