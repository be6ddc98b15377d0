package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"tessera/internal/scheduler"
)

// Load reads a YAML config file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the conventional parameters.
func (c *Config) ApplyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9985"
	}
	if c.Trading.Symbol == "" {
		c.Trading.Symbol = "BTCUSDT"
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1m"
	}
	if c.Trading.CandleLimit <= 0 {
		c.Trading.CandleLimit = 100
	}
	if c.Exchange.StakeCurrency == "" {
		c.Exchange.StakeCurrency = "USDT"
	}
	if c.Exchange.HTTPTimeoutSeconds <= 0 {
		c.Exchange.HTTPTimeoutSeconds = 15
	}
	if c.Exchange.Paper && c.Exchange.PaperBalance <= 0 {
		c.Exchange.PaperBalance = 10000
	}

	if c.Strategy.RSI.Period <= 0 {
		c.Strategy.RSI.Period = 14
	}
	if c.Strategy.RSI.Oversold <= 0 {
		c.Strategy.RSI.Oversold = 30
	}
	if c.Strategy.RSI.Overbought <= 0 {
		c.Strategy.RSI.Overbought = 70
	}
	if c.Strategy.MACD.Fast <= 0 {
		c.Strategy.MACD.Fast = 12
	}
	if c.Strategy.MACD.Slow <= 0 {
		c.Strategy.MACD.Slow = 26
	}
	if c.Strategy.MACD.Signal <= 0 {
		c.Strategy.MACD.Signal = 9
	}
	if c.Strategy.MACD.NormDivisor <= 0 {
		c.Strategy.MACD.NormDivisor = 10
	}
	if len(c.Strategy.Weights) == 0 {
		c.Strategy.Weights = map[string]float64{"rsi": 0.6, "macd": 0.4}
	}
	if c.Strategy.MinConfidence <= 0 {
		c.Strategy.MinConfidence = 0.3
	}

	if c.Risk.RiskPct <= 0 {
		c.Risk.RiskPct = 2
	}
	if c.Risk.MaxPositionPct <= 0 {
		c.Risk.MaxPositionPct = 10
	}
	if c.Risk.StopLossPct <= 0 {
		c.Risk.StopLossPct = 1
	}
	if c.Risk.TakeProfitPct <= 0 {
		c.Risk.TakeProfitPct = 2
	}
	if c.Risk.MaxDailyLossPct <= 0 {
		c.Risk.MaxDailyLossPct = 5
	}
	if c.Risk.QtyStep <= 0 {
		c.Risk.QtyStep = 0.001
	}
	if c.Risk.MinQty <= 0 {
		c.Risk.MinQty = 0.001
	}

	if c.Engine.MaxConsecutiveFailures <= 0 {
		c.Engine.MaxConsecutiveFailures = 5
	}
	if c.Engine.TickOffsetSeconds <= 0 {
		c.Engine.TickOffsetSeconds = 5
	}
	if c.Engine.EventBuffer <= 0 {
		c.Engine.EventBuffer = 64
	}
}

// Validate rejects configurations the engine cannot run with.
func Validate(c *Config) error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Trading.Interval); !ok {
		return fmt.Errorf("trading.interval %q is not a valid interval", c.Trading.Interval)
	}
	for name, w := range c.Strategy.Weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("strategy.weights[%s]=%v must be in [0,1]", name, w)
		}
	}
	for name, f := range c.Strategy.Floors {
		if f < 0 || f > 1 {
			return fmt.Errorf("strategy.floors[%s]=%v must be in [0,1]", name, f)
		}
	}
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
		return fmt.Errorf("strategy.min_confidence=%v must be in [0,1]", c.Strategy.MinConfidence)
	}
	if c.Strategy.MACD.Fast >= c.Strategy.MACD.Slow {
		return fmt.Errorf("strategy.macd.fast=%d must be below strategy.macd.slow=%d", c.Strategy.MACD.Fast, c.Strategy.MACD.Slow)
	}
	if c.Risk.FeeRate < 0 {
		return fmt.Errorf("risk.fee_rate must not be negative")
	}
	if !c.Exchange.Paper && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange.api_key/api_secret are required for live trading (or set exchange.paper)")
	}
	return nil
}
