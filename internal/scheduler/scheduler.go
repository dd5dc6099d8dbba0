// Package scheduler runs consolidation on a timer, per spec.md §4.10 and
// §5: exactly one consolidation task process-wide, ticking on
// CONSOLIDATION_INTERVAL_SECONDS. Simplified from the shape of
// the teacher's internal/background worker-pool interfaces (TaskExecutor/
// TaskQueue/WorkerPool) down to the single recurring job this system
// actually needs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Consolidator is the unit of work the scheduler ticks: one pass of
// consolidation across every bank.
type Consolidator interface {
	RunAll(ctx context.Context) error
}

// ConsolidationScheduler ticks Consolidator.RunAll on an interval. Starting
// it twice is a no-op; Stop is idempotent.
type ConsolidationScheduler struct {
	interval     time.Duration
	consolidator Consolidator
	logger       *logrus.Entry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(interval time.Duration, consolidator Consolidator, logger *logrus.Entry) *ConsolidationScheduler {
	return &ConsolidationScheduler{interval: interval, consolidator: consolidator, logger: logger}
}

// Start launches the ticking loop in a goroutine. It waits one full
// interval before the first run, per spec.md §4.10, so a freshly started
// process doesn't immediately contend with whatever else is warming up.
func (sc *ConsolidationScheduler) Start(ctx context.Context) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sc.cancel = cancel
	sc.done = make(chan struct{})
	sc.running = true

	go sc.loop(loopCtx)
}

// Stop cancels the loop and waits for the current tick (if any) to finish.
func (sc *ConsolidationScheduler) Stop(ctx context.Context) {
	sc.mu.Lock()
	if !sc.running {
		sc.mu.Unlock()
		return
	}
	cancel := sc.cancel
	done := sc.done
	sc.running = false
	sc.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Trigger runs one consolidation pass immediately, outside the ticker. The
// `hindsight consolidate --once` CLI subcommand does not go through it; it
// calls Engine.RunAll directly.
func (sc *ConsolidationScheduler) Trigger(ctx context.Context) error {
	return sc.consolidator.RunAll(ctx)
}

func (sc *ConsolidationScheduler) loop(ctx context.Context) {
	defer close(sc.done)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sc.consolidator.RunAll(ctx); err != nil {
				sc.logger.WithError(err).Error("scheduler: consolidation pass failed")
			}
		}
	}
}
