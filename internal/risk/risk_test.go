package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/position"
)

func testConfig() Config {
	return Config{
		RiskPct:         2,
		MaxPositionPct:  10,
		StopLossPct:     1,
		TakeProfitPct:   2,
		MaxDailyLossPct: 5,
		QtyStep:         0.001,
		MinQty:          0.001,
	}
}

func TestSizePosition(t *testing.T) {
	m := NewManager(testConfig())
	// balance=10000, riskPct=2, entry=50000 -> 200/50000 = 0.004
	qty, err := m.SizePosition(10000, 50000)
	require.NoError(t, err)
	assert.Equal(t, 0.004, qty)
}

func TestSizePositionFloorsToStep(t *testing.T) {
	cfg := testConfig()
	cfg.QtyStep = 0.01
	m := NewManager(cfg)
	// 200/30000 = 0.006666..., floored to step 0.01 -> 0
	_, err := m.SizePosition(10000, 30000)
	var sizeErr *SizingError
	require.ErrorAs(t, err, &sizeErr)

	cfg.QtyStep = 0.001
	m = NewManager(cfg)
	qty, err := m.SizePosition(10000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.006, qty)
}

func TestSizePositionBelowMinimum(t *testing.T) {
	cfg := testConfig()
	cfg.MinQty = 0.01
	m := NewManager(cfg)
	_, err := m.SizePosition(10000, 50000) // 0.004 < 0.01
	var sizeErr *SizingError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 0.004, sizeErr.Quantity)
}

func TestApproveTradeExposureCap(t *testing.T) {
	m := NewManager(testConfig())
	// limit = 10% of 10000 = 1000
	assert.NoError(t, m.ApproveTrade(0.01, 50000, 10000)) // 500 exposure
	err := m.ApproveTrade(0.05, 50000, 10000)             // 2500 exposure
	assert.ErrorIs(t, err, ErrExposureExceeded)
}

func TestCheckExitTriggersLong(t *testing.T) {
	m := NewManager(testConfig())
	pos := position.Position{Side: position.Long, EntryPrice: 100, StopLossPrice: 99, TakeProfitPrice: 102}

	assert.Equal(t, ExitNone, m.CheckExitTriggers(pos, 100.5))
	assert.Equal(t, ExitStopLoss, m.CheckExitTriggers(pos, 98.5))
	assert.Equal(t, ExitStopLoss, m.CheckExitTriggers(pos, 99)) // boundary crosses
	assert.Equal(t, ExitTakeProfit, m.CheckExitTriggers(pos, 102.3))
}

func TestCheckExitTriggersShort(t *testing.T) {
	m := NewManager(testConfig())
	pos := position.Position{Side: position.Short, EntryPrice: 100, StopLossPrice: 101, TakeProfitPrice: 98}

	assert.Equal(t, ExitNone, m.CheckExitTriggers(pos, 100))
	assert.Equal(t, ExitStopLoss, m.CheckExitTriggers(pos, 101.2))
	assert.Equal(t, ExitTakeProfit, m.CheckExitTriggers(pos, 97.9))
}

func TestDailyCircuitBreaker(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return now }

	balance := 10000.0 // limit = 5% = 500

	tripped := m.RecordTradeClose(-200, balance)
	assert.False(t, tripped)
	assert.False(t, m.Halted())
	assert.NoError(t, m.ApproveTrade(0.001, 50000, balance))

	tripped = m.RecordTradeClose(-250, balance)
	assert.False(t, tripped, "cumulative loss 450 does not exceed 500")

	tripped = m.RecordTradeClose(-100, balance)
	assert.True(t, tripped, "cumulative loss 550 exceeds 500")
	assert.True(t, m.Halted())
	assert.ErrorIs(t, m.ApproveTrade(0.001, 50000, balance), ErrHalted)

	// Further closes while halted are still recorded.
	assert.False(t, m.RecordTradeClose(-50, balance))
	assert.InDelta(t, -600, m.DailyPnL(), 1e-9)

	// Crossing the UTC day boundary resets counters and lifts the halt.
	now = now.Add(24 * time.Hour)
	assert.False(t, m.Halted())
	assert.Zero(t, m.DailyPnL())
	assert.NoError(t, m.ApproveTrade(0.001, 50000, balance))
}

func TestProfitsDoNotTrip(t *testing.T) {
	m := NewManager(testConfig())
	assert.False(t, m.RecordTradeClose(1000, 10000))
	assert.False(t, m.Halted())
}

func TestStateRoundTrip(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return now }
	m.RecordTradeClose(-600, 10000)

	st := m.State()
	assert.True(t, st.Halted)
	assert.Equal(t, 1, st.TradesToday)

	other := NewManager(testConfig())
	other.nowFn = m.nowFn
	other.Restore(st)
	assert.Equal(t, st, other.State())

	// Restoring yesterday's snapshot on a new day starts clean.
	stale := NewManager(testConfig())
	stale.nowFn = func() time.Time { return now.Add(24 * time.Hour) }
	stale.Restore(st)
	assert.False(t, stale.Halted())
	assert.Zero(t, stale.DailyPnL())
}
