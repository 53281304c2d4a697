package poller

import (
	"context"
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("poller")

type argsBasePoller[T any] struct {
	name        string
	interval    time.Duration
	fetch       func(ctx context.Context) (*T, error)
	onSuccess   func(payload *T, timestamp time.Time)
	notify      func()
	tracker     ConnectionTracker
	timeHandler func() time.Time
}

// basePoller implements the fetch -> commit -> notify cycle shared by all pollers. Cycles are serialized through
// cycleGuard, so cycle i+1 never starts before cycle i committed its state.
type basePoller[T any] struct {
	name        string
	fetch       func(ctx context.Context) (*T, error)
	onSuccess   func(payload *T, timestamp time.Time)
	notify      func()
	tracker     ConnectionTracker
	timeHandler func() time.Time
	sched       *scheduler
	cycleGuard  chan struct{}

	mutState sync.RWMutex
	state    common.PollerState
	payload  *T
	paused   bool
}

func newBasePoller[T any](args argsBasePoller[T]) *basePoller[T] {
	bp := &basePoller[T]{
		name:        args.name,
		fetch:       args.fetch,
		onSuccess:   args.onSuccess,
		notify:      args.notify,
		tracker:     args.tracker,
		timeHandler: args.timeHandler,
		cycleGuard:  make(chan struct{}, 1),
		state: common.PollerState{
			Status:  common.StatusIdle,
			Loading: true,
		},
	}
	if bp.timeHandler == nil {
		bp.timeHandler = time.Now
	}
	if bp.notify == nil {
		bp.notify = func() {}
	}
	bp.sched = newScheduler(args.interval, bp.runScheduledCycle, bp.IsPaused)

	return bp
}

// Start fetches immediately and then arms the periodic timer. Calling Start on a running poller does nothing.
func (bp *basePoller[T]) Start() {
	if bp.sched.start() {
		log.Debug("poller started", "poller", bp.name, "interval", bp.sched.interval)
	}
}

// Stop cancels the timer, discards any in-flight fetch and waits for the polling routine to exit.
// It is idempotent and must not be called from a subscriber callback.
func (bp *basePoller[T]) Stop() {
	if bp.sched.stop() {
		log.Debug("poller stopped", "poller", bp.name)
	}
}

// IsRunning returns true between Start and Stop
func (bp *basePoller[T]) IsRunning() bool {
	return bp.sched.isRunning()
}

// RefreshNow performs an out-of-band fetch on the calling goroutine, regardless of the pause state.
// The timer phase is left untouched. If a cycle is in flight, the refresh waits for it to commit first.
func (bp *basePoller[T]) RefreshNow(ctx context.Context) {
	bp.runCycle(ctx, bp.sched.currentGeneration(), false)
}

// IsPaused returns true if scheduled ticks are currently ignored
func (bp *basePoller[T]) IsPaused() bool {
	bp.mutState.RLock()
	defer bp.mutState.RUnlock()

	return bp.paused
}

func (bp *basePoller[T]) setPaused(paused bool) bool {
	bp.mutState.Lock()
	defer bp.mutState.Unlock()

	if bp.paused == paused {
		return false
	}

	bp.applyPausedUnprotected(paused)

	return true
}

func (bp *basePoller[T]) togglePaused() bool {
	bp.mutState.Lock()
	defer bp.mutState.Unlock()

	bp.applyPausedUnprotected(!bp.paused)

	return bp.paused
}

// applyPausedUnprotected only swaps between Idle and Paused, a fetching or failed status is kept
func (bp *basePoller[T]) applyPausedUnprotected(paused bool) {
	bp.paused = paused

	switch {
	case paused && bp.state.Status == common.StatusIdle:
		bp.state.Status = common.StatusPaused
	case !paused && bp.state.Status == common.StatusPaused:
		bp.state.Status = common.StatusIdle
	}
}

func (bp *basePoller[T]) pollerState() (common.PollerState, *T) {
	bp.mutState.RLock()
	defer bp.mutState.RUnlock()

	return bp.state, bp.payload
}

func (bp *basePoller[T]) runScheduledCycle(ctx context.Context, generation uint64) bool {
	return bp.runCycle(ctx, generation, true)
}

// runCycle waits for the cycle guard, fetches and commits. A scheduled cycle re-checks the pause flag once it holds
// the guard, as the operator may have paused while it was queued behind a refresh.
func (bp *basePoller[T]) runCycle(ctx context.Context, generation uint64, scheduled bool) bool {
	select {
	case bp.cycleGuard <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	defer func() {
		<-bp.cycleGuard
	}()

	if !bp.sched.isCurrent(generation) {
		return false
	}
	if scheduled && bp.IsPaused() {
		return false
	}

	bp.setFetching()
	payload, err := bp.fetch(ctx)
	if !bp.sched.isCurrent(generation) {
		bp.restoreStatus()
		log.Debug("discarding the result of a superseded fetch", "poller", bp.name)
		return false
	}

	bp.commit(payload, err)
	bp.notify()

	return true
}

func (bp *basePoller[T]) setFetching() {
	bp.mutState.Lock()
	bp.state.Status = common.StatusFetching
	bp.mutState.Unlock()
}

func (bp *basePoller[T]) restoreStatus() {
	bp.mutState.Lock()
	bp.state.Status = bp.restingStatusUnprotected()
	bp.mutState.Unlock()
}

func (bp *basePoller[T]) commit(payload *T, err error) {
	now := bp.timeHandler()

	bp.mutState.Lock()
	defer bp.mutState.Unlock()

	if err == nil && payload == nil {
		err = errNilPayload
	}

	if err != nil {
		bp.tracker.RecordFailure(err)
		bp.syncConnectionUnprotected()
		bp.state.Status = common.StatusError
		log.Warn("fetch failed", "poller", bp.name,
			"consecutive failures", bp.state.ConsecutiveFailures, "error", err)
		return
	}

	bp.tracker.RecordSuccess()
	bp.syncConnectionUnprotected()
	bp.payload = payload
	bp.state.LastUpdated = now
	bp.state.Status = common.StatusIdle
	if bp.onSuccess != nil {
		bp.onSuccess(payload, now)
	}
	log.Trace("fetch succeeded", "poller", bp.name)
}

func (bp *basePoller[T]) syncConnectionUnprotected() {
	bp.state.Loading = !bp.tracker.Resolved()
	bp.state.LastError = bp.tracker.LastError()
	bp.state.ConsecutiveFailures = bp.tracker.ConsecutiveFailures()
	bp.state.Connected = bp.tracker.Connected()
}

func (bp *basePoller[T]) restingStatusUnprotected() common.PollerStatus {
	if bp.tracker.ConsecutiveFailures() > 0 {
		return common.StatusError
	}
	if bp.paused {
		return common.StatusPaused
	}

	return common.StatusIdle
}
