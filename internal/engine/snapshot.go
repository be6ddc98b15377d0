package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tessera/internal/logger"
	"tessera/internal/position"
	"tessera/internal/risk"
	"tessera/internal/store"
)

// SnapshotVersion is bumped whenever the snapshot layout changes; older
// payloads are rejected at restore rather than guessed at.
const SnapshotVersion = 1

// Snapshot is the complete persistable engine state: the open position
// slots, the closed-trade history and the daily risk counters.
type Snapshot struct {
	Version int                     `json:"version"`
	Open    []position.Position     `json:"open"`
	History []position.ClosedTrade `json:"history"`
	Risk    risk.State              `json:"risk"`
}

// SerializeState captures the current engine state as a versioned JSON
// payload.
func (e *Engine) SerializeState() ([]byte, error) {
	snap := Snapshot{
		Version: SnapshotVersion,
		Open:    e.p.Positions.OpenPositions(),
		History: e.p.Positions.History(),
		Risk:    e.p.Risk.State(),
	}
	return json.Marshal(snap)
}

// RestoreState replaces the position and risk state with the snapshot's
// contents. Payloads from a different snapshot version are rejected.
func (e *Engine) RestoreState(payload []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("restore: decoding snapshot failed: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("restore: unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	e.p.Positions.Restore(snap.Open, snap.History)
	e.p.Risk.Restore(snap.Risk)
	return nil
}

// loadState hydrates the engine from the store at startup. A missing
// snapshot is a fresh start, not an error.
func (e *Engine) loadState(ctx context.Context) error {
	version, payload, err := e.p.Store.LoadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshot) {
			logger.Infof("Engine: no persisted state, starting fresh")
			return nil
		}
		return fmt.Errorf("loading snapshot failed: %w", err)
	}
	if version != SnapshotVersion {
		logger.Warnf("Engine: persisted snapshot version %d unsupported, starting fresh", version)
		return nil
	}
	if err := e.RestoreState(payload); err != nil {
		return err
	}
	open := e.p.Positions.OpenPositions()
	logger.Infof("Engine: state restored, open_positions=%d trades=%d daily_pnl=%.4f halted=%v",
		len(open), len(e.p.Positions.History()), e.p.Risk.DailyPnL(), e.p.Risk.Halted())
	return nil
}

// persist writes the current snapshot after a mutating tick; persistence
// failures are logged, never fail the tick.
func (e *Engine) persist(ctx context.Context) {
	if e.p.Store == nil {
		return
	}
	payload, err := e.SerializeState()
	if err != nil {
		logger.Warnf("Engine: snapshot encode failed: %v", err)
		return
	}
	if err := e.p.Store.SaveSnapshot(ctx, SnapshotVersion, payload); err != nil {
		logger.Warnf("Engine: snapshot save failed: %v", err)
	}
}
