package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// scheduler owns the periodic timer of one poller. Every start opens a new generation; stop closes it and
// waits for the loop goroutine to exit, so results produced under an older generation can be recognized and dropped.
type scheduler struct {
	interval   time.Duration
	cycle      func(ctx context.Context, generation uint64) bool
	skipTick   func() bool
	generation atomic.Uint64

	mutRun sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newScheduler(
	interval time.Duration,
	cycle func(ctx context.Context, generation uint64) bool,
	skipTick func() bool,
) *scheduler {
	return &scheduler{
		interval: interval,
		cycle:    cycle,
		skipTick: skipTick,
	}
}

// start runs one cycle immediately and then one per interval. Returns false if already running.
func (s *scheduler) start() bool {
	s.mutRun.Lock()
	defer s.mutRun.Unlock()

	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	generation := s.generation.Add(1)
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done

	go s.loop(ctx, generation, done)

	return true
}

// stop cancels the timer and any in-flight cycle, then blocks until the loop exited. Returns false if not running.
// Must not be called from within a cycle.
func (s *scheduler) stop() bool {
	s.mutRun.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	if cancel != nil {
		s.generation.Add(1)
	}
	s.mutRun.Unlock()

	if cancel == nil {
		return false
	}

	cancel()
	<-done

	return true
}

func (s *scheduler) isRunning() bool {
	s.mutRun.Lock()
	defer s.mutRun.Unlock()

	return s.cancel != nil
}

func (s *scheduler) currentGeneration() uint64 {
	return s.generation.Load()
}

func (s *scheduler) isCurrent(generation uint64) bool {
	return s.generation.Load() == generation
}

func (s *scheduler) loop(ctx context.Context, generation uint64, done chan struct{}) {
	defer close(done)

	// time.Ticker drops ticks while the receiver is busy, so a slow fetch leaves at most one pending tick
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx, generation)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if s.skipTick() {
				continue
			}

			s.cycle(ctx, generation)
		}
	}
}
