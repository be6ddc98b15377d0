package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
exchange:
  paper: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "1m", cfg.Trading.Interval)
	assert.Equal(t, 14, cfg.Strategy.RSI.Period)
	assert.Equal(t, 0.6, cfg.Strategy.Weights["rsi"])
	assert.Equal(t, 0.4, cfg.Strategy.Weights["macd"])
	assert.Equal(t, 0.3, cfg.Strategy.MinConfidence)
	assert.Equal(t, 2.0, cfg.Risk.RiskPct)
	assert.Equal(t, 5, cfg.Engine.MaxConsecutiveFailures)
	assert.Equal(t, 10000.0, cfg.Exchange.PaperBalance)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
exchange:
  paper: true
trading:
  symbol: ETHUSDT
  interval: 5m
strategy:
  weights:
    rsi: 0.5
    macd: 0.5
  min_confidence: 0.4
risk:
  risk_pct: 1.5
  max_daily_loss_pct: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "5m", cfg.Trading.Interval)
	assert.Equal(t, 0.5, cfg.Strategy.Weights["macd"])
	assert.Equal(t, 0.4, cfg.Strategy.MinConfidence)
	assert.Equal(t, 1.5, cfg.Risk.RiskPct)
	assert.Equal(t, 3.0, cfg.Risk.MaxDailyLossPct)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, `
exchange:
  paper: true
trading:
  interval: nonsense
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
exchange:
  paper: true
strategy:
  weights:
    rsi: 1.5
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLiveTradingRequiresKeys(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbol: BTCUSDT
`)
	_, err := Load(path)
	assert.Error(t, err)
}
