// Package scheduler drives the tick loop on candle-aligned wall-clock
// boundaries.
package scheduler

import (
	"context"
	"time"

	"tessera/internal/logger"
)

// AlignedScheduler fires a task once per interval, aligned to the interval
// boundary plus an offset (so a tick sees the just-closed candle). The task
// runs synchronously in the scheduler goroutine: ticks never overlap, and a
// context cancellation takes effect only between tasks, never mid-task.
type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

// NewAlignedScheduler builds a scheduler bound to ctx.
func NewAlignedScheduler(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, invoking task on every aligned boundary until the context
// is done. The in-flight task always completes before Start returns.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("AlignedScheduler: started interval=%s offset=%s run_immediately=%v",
		s.Interval, s.Offset, s.RunImmediately)

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn().UTC()
		wakeAt := now.Truncate(s.Interval).Add(s.Interval).Add(s.Offset)
		wait := wakeAt.Sub(now)
		if wait <= 0 {
			task()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: context done, exit")
			return
		case <-timer.C:
		}
		if s.ctx.Err() != nil {
			return
		}
		task()
	}
}
