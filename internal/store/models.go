package store

import (
	"time"

	"tessera/internal/position"
)

// SnapshotModel holds the single serialized engine snapshot. Row ID is fixed
// at 1; every save overwrites the previous state.
type SnapshotModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Version   int    `gorm:"column:version"`
	Payload   string `gorm:"column:payload"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (SnapshotModel) TableName() string { return "snapshots" }

// TradeModel is one row of the closed-trade history.
type TradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol      string  `gorm:"column:symbol;index"`
	Side        string  `gorm:"column:side"`
	EntryPrice  float64 `gorm:"column:entry_price"`
	ExitPrice   float64 `gorm:"column:exit_price"`
	Quantity    float64 `gorm:"column:quantity"`
	EntryTime   int64   `gorm:"column:entry_time"`
	ExitTime    int64   `gorm:"column:exit_time;index"`
	RealizedPnL float64 `gorm:"column:realized_pnl"`
	Fees        float64 `gorm:"column:fees"`
	Reason      string  `gorm:"column:reason"`
	DurationMS  int64   `gorm:"column:duration_ms"`
}

func (TradeModel) TableName() string { return "trades" }

func newTradeModel(t position.ClosedTrade) TradeModel {
	return TradeModel{
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		Quantity:    t.Quantity,
		EntryTime:   t.EntryTime.UnixMilli(),
		ExitTime:    t.ExitTime.UnixMilli(),
		RealizedPnL: t.RealizedPnL,
		Fees:        t.Fees,
		Reason:      t.Reason,
		DurationMS:  t.Duration.Milliseconds(),
	}
}

func (m TradeModel) toClosedTrade() position.ClosedTrade {
	return position.ClosedTrade{
		Symbol:      m.Symbol,
		Side:        position.Side(m.Side),
		EntryPrice:  m.EntryPrice,
		ExitPrice:   m.ExitPrice,
		Quantity:    m.Quantity,
		EntryTime:   time.UnixMilli(m.EntryTime).UTC(),
		ExitTime:    time.UnixMilli(m.ExitTime).UTC(),
		RealizedPnL: m.RealizedPnL,
		Fees:        m.Fees,
		Reason:      m.Reason,
		Duration:    time.Duration(m.DurationMS) * time.Millisecond,
	}
}
