package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BuyLevel maps a market-drop magnitude to a capital-allocation percentage.
// A level matches when the observed variation is <= Threshold.
type BuyLevel struct {
	Threshold         float64 `yaml:"variation_threshold"`
	AllocationPercent float64 `yaml:"allocation_percent"`
	Label             string  `yaml:"label"`
}

// PairConfig is the per-pair strategy document. It is read-only to the
// engine; all defaulting is resolved here at load time, never at read sites.
type PairConfig struct {
	Pair        string     `yaml:"pair"`
	Enabled     bool       `yaml:"enabled"`
	TradingMode string     `yaml:"trading_mode"` // safe, hybrid or trailing
	BuyLevels   []BuyLevel `yaml:"buy_levels"`

	SellStrategy struct {
		MinProfit4h  float64 `yaml:"min_profit_4h"`
		MinProfit24h float64 `yaml:"min_profit_24h"`
	} `yaml:"sell_strategy"`

	TrailingStop struct {
		Enabled                 bool    `yaml:"enabled"`
		ActivationProfitPercent float64 `yaml:"activation_profit_percent"`
		TrailDistancePercent    float64 `yaml:"trail_distance_percent"`
		PartialSellPercent      float64 `yaml:"partial_sell_percent"`
	} `yaml:"trailing_stop"`

	RiskManagement struct {
		StopLossEnabled    bool    `yaml:"stop_loss_enabled"`
		StopLossPercent    float64 `yaml:"stop_loss_percent"`
		MaxPositionPercent float64 `yaml:"max_position_percent"`
		CooldownHours      float64 `yaml:"cooldown_hours"`
		MaxTradesPerHour   int     `yaml:"max_trades_per_hour"`
	} `yaml:"risk_management"`

	SmallBalanceThreshold float64 `yaml:"small_balance_threshold"`
}

type Config struct {
	Mode          string        `yaml:"mode"` // DRY_RUN or LIVE
	PollSeconds   int           `yaml:"poll_seconds"`
	MinOrderValue float64       `yaml:"min_order_value"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	QuoteAsset    string        `yaml:"quote_asset"`
	Pairs         []*PairConfig `yaml:"pairs"`
}

// ValidateLevels checks the threshold table invariants: every threshold is
// negative, thresholds are strictly decreasing (more negative = later tier)
// and allocations stay inside 0-100.
func (p *PairConfig) ValidateLevels() error {
	if len(p.BuyLevels) == 0 {
		return fmt.Errorf("pair %s: buy_levels cannot be empty", p.Pair)
	}
	prev := 0.0
	for i, lvl := range p.BuyLevels {
		if lvl.Threshold >= 0 {
			return fmt.Errorf("pair %s: buy_levels[%d] threshold %.2f must be negative", p.Pair, i, lvl.Threshold)
		}
		if lvl.Threshold >= prev {
			return fmt.Errorf("pair %s: buy_levels[%d] threshold %.2f breaks strictly decreasing order", p.Pair, i, lvl.Threshold)
		}
		if lvl.AllocationPercent <= 0 || lvl.AllocationPercent > 100 {
			return fmt.Errorf("pair %s: buy_levels[%d] allocation %.2f must be within (0,100]", p.Pair, i, lvl.AllocationPercent)
		}
		prev = lvl.Threshold
	}
	return nil
}

func (p *PairConfig) validate() error {
	if p.Pair == "" {
		return errors.New("pair name cannot be empty")
	}
	switch p.TradingMode {
	case "safe", "hybrid", "trailing":
	default:
		return fmt.Errorf("pair %s: trading_mode must be 'safe', 'hybrid' or 'trailing', got '%s'", p.Pair, p.TradingMode)
	}
	if err := p.ValidateLevels(); err != nil {
		return err
	}
	if p.TradingMode == "trailing" {
		if p.TrailingStop.ActivationProfitPercent <= 0 {
			return fmt.Errorf("pair %s: trailing_stop.activation_profit_percent must be positive", p.Pair)
		}
		if p.TrailingStop.TrailDistancePercent <= 0 {
			return fmt.Errorf("pair %s: trailing_stop.trail_distance_percent must be positive", p.Pair)
		}
		if p.TrailingStop.PartialSellPercent <= 0 || p.TrailingStop.PartialSellPercent >= 100 {
			return fmt.Errorf("pair %s: trailing_stop.partial_sell_percent must be within (0,100)", p.Pair)
		}
	}
	if p.RiskManagement.StopLossEnabled && p.RiskManagement.StopLossPercent <= 0 {
		return fmt.Errorf("pair %s: risk_management.stop_loss_percent must be positive when stop-loss is enabled", p.Pair)
	}
	if p.RiskManagement.MaxPositionPercent <= 0 || p.RiskManagement.MaxPositionPercent > 100 {
		return fmt.Errorf("pair %s: risk_management.max_position_percent must be within (0,100]", p.Pair)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Pairs) == 0 {
		return errors.New("pairs cannot be empty")
	}
	seen := map[string]bool{}
	for _, p := range c.Pairs {
		if seen[p.Pair] {
			return fmt.Errorf("duplicate pair '%s'", p.Pair)
		}
		seen[p.Pair] = true
		if err := p.validate(); err != nil {
			return err
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.MinOrderValue == 0 {
		c.MinOrderValue = 5
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9108"
	}
	for _, p := range c.Pairs {
		// Business default: balances under $10 are force-deployed at 100%.
		if p.SmallBalanceThreshold == 0 {
			p.SmallBalanceThreshold = 10
		}
		if p.RiskManagement.MaxPositionPercent == 0 {
			p.RiskManagement.MaxPositionPercent = 100
		}
		if p.TradingMode == "" {
			p.TradingMode = "safe"
		}
		if p.TradingMode == "trailing" {
			p.TrailingStop.Enabled = true
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
