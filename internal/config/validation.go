package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the shape of a config file before it is even
// unmarshaled into Config — catching typos in section names or wrong
// value types with a precise pointer into the document, rather than a
// silent zero-value fallback.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "app": {"type": "object"},
    "instrument": {
      "type": "object",
      "properties": {
        "symbol": {"type": "string"},
        "timeframe": {"type": "string", "enum": ["M1","M5","M15","M30","H1","H4","D1","m1","m5","m15","m30","h1","h4","d1"]}
      }
    },
    "account": {"type": "object"},
    "pricing": {"type": "object"},
    "risk": {"type": "object"},
    "strategy": {"type": "object"},
    "ingestion": {"type": "object"},
    "retention": {"type": "object"},
    "control": {"type": "object"}
  }
}`

func validateAgainstSchema(raw map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader([]byte(configSchema))); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("config failed schema validation: %w", err)
	}
	return nil
}

// validate applies the per-section range checks the schema can't express.
func validate(c *Config) error {
	if err := c.Instrument.validate(); err != nil {
		return err
	}
	if err := c.Account.validate(); err != nil {
		return err
	}
	if err := c.Pricing.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Retention.validate(); err != nil {
		return err
	}
	return nil
}

func (i *InstrumentConfig) validate() error {
	if strings.TrimSpace(i.Symbol) == "" {
		return fmt.Errorf("instrument.symbol cannot be empty")
	}
	if !validTimeframe(i.Timeframe) {
		return fmt.Errorf("instrument.timeframe %q is not a supported grid code", i.Timeframe)
	}
	return nil
}

func validTimeframe(tf string) bool {
	switch strings.ToUpper(strings.TrimSpace(tf)) {
	case "M1", "M5", "M15", "M30", "H1", "H4", "D1":
		return true
	default:
		return false
	}
}

func (a *AccountConfig) validate() error {
	if a.StartingBalance <= 0 {
		return fmt.Errorf("account.starting_balance must be > 0")
	}
	if strings.TrimSpace(a.Currency) == "" {
		return fmt.Errorf("account.currency cannot be empty")
	}
	return nil
}

func (p *PricingConfig) validate() error {
	if p.SpreadPips < 0 {
		return fmt.Errorf("pricing.spread_pips must be >= 0")
	}
	if p.SlippagePips < 0 {
		return fmt.Errorf("pricing.slippage_pips must be >= 0")
	}
	if p.PipSize <= 0 {
		return fmt.Errorf("pricing.pip_size must be > 0")
	}
	if p.ContractSize <= 0 {
		return fmt.Errorf("pricing.contract_size must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxOpenPositions <= 0 {
		return fmt.Errorf("risk.max_open_positions must be > 0")
	}
	if r.MaxOpenPositionsPerSymbol <= 0 {
		return fmt.Errorf("risk.max_open_positions_per_symbol must be > 0")
	}
	if r.RiskPerTradePct <= 0 || r.RiskPerTradePct > 1 {
		return fmt.Errorf("risk.risk_per_trade_pct must be in (0, 1]")
	}
	if r.DailyLossLimitPct < 0 {
		return fmt.Errorf("risk.daily_loss_limit_pct must be >= 0 (0 disables the check)")
	}
	if r.DailyLossLimitAmount < 0 {
		return fmt.Errorf("risk.daily_loss_limit_amount must be >= 0 (0 disables the check)")
	}
	if r.Leverage <= 0 {
		return fmt.Errorf("risk.leverage must be > 0")
	}
	if r.LotStep <= 0 {
		return fmt.Errorf("risk.lot_step must be > 0")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("strategy.name cannot be empty")
	}
	if s.CooldownCandles < 0 {
		return fmt.Errorf("strategy.cooldown_candles must be >= 0")
	}
	if s.WindowSize <= 0 {
		return fmt.Errorf("strategy.window_size must be > 0")
	}
	return nil
}

func (r *RetentionConfig) validate() error {
	if r.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	if r.PruneIntervalHours <= 0 {
		return fmt.Errorf("retention.prune_interval_hours must be > 0")
	}
	return nil
}
