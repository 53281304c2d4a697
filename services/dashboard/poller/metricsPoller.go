package poller

import (
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/history"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/tracker"
	"github.com/multiversx/mx-chain-core-go/core/check"
)

// DefaultMetricsInterval is the default cadence of the metrics poller
const DefaultMetricsInterval = 3 * time.Second

const metricsFallbackMessage = "Failed to fetch metrics"

// MetricsStateHandler receives the metrics state after each committed cycle
type MetricsStateHandler func(state common.MetricsState)

// ArgsMetricsPoller holds the arguments needed to create a metrics poller
type ArgsMetricsPoller struct {
	Source                 MetricsSource
	Interval               time.Duration
	MaxHistory             int
	MaxConsecutiveFailures int
	TimeHandler            func() time.Time
}

// metricsPoller polls the combined metrics endpoint and keeps the bounded snapshot history
type metricsPoller struct {
	*basePoller[common.MetricsPayload]
	history *history.Buffer

	mutHandlers sync.RWMutex
	handlers    []MetricsStateHandler
}

// NewMetricsPoller creates a stopped metrics poller
func NewMetricsPoller(args ArgsMetricsPoller) (*metricsPoller, error) {
	if check.IfNil(args.Source) {
		return nil, ErrNilMetricsSource
	}
	if args.Interval <= 0 {
		return nil, ErrInvalidInterval
	}

	buff, err := history.NewBuffer(args.MaxHistory)
	if err != nil {
		return nil, err
	}

	connTracker, err := tracker.NewConnectionTracker(args.MaxConsecutiveFailures, metricsFallbackMessage)
	if err != nil {
		return nil, err
	}

	mp := &metricsPoller{
		history: buff,
	}
	mp.basePoller = newBasePoller(argsBasePoller[common.MetricsPayload]{
		name:        "metrics",
		interval:    args.Interval,
		fetch:       args.Source.FetchAllMetrics,
		onSuccess:   mp.appendSnapshot,
		notify:      mp.notifyHandlers,
		tracker:     connTracker,
		timeHandler: args.TimeHandler,
	})

	return mp, nil
}

func (mp *metricsPoller) appendSnapshot(payload *common.MetricsPayload, timestamp time.Time) {
	mp.history.Append(payload.ToSnapshot(timestamp))
}

// SetPaused suspends or resumes the scheduled fetches. History and state are kept.
func (mp *metricsPoller) SetPaused(paused bool) {
	if !mp.setPaused(paused) {
		return
	}

	log.Info("metrics polling pause changed", "paused", paused)
	mp.notifyHandlers()
}

// TogglePause flips the pause flag and returns the new value
func (mp *metricsPoller) TogglePause() bool {
	paused := mp.togglePaused()

	log.Info("metrics polling pause changed", "paused", paused)
	mp.notifyHandlers()

	return paused
}

// State returns the poller state, the latest payload and a copy of the history
func (mp *metricsPoller) State() common.MetricsState {
	state, payload := mp.pollerState()

	return common.MetricsState{
		PollerState: state,
		Payload:     payload,
		History:     mp.history.All(),
	}
}

// History returns a copy of the whole history, oldest first
func (mp *metricsPoller) History() []common.Snapshot {
	return mp.history.All()
}

// Window returns the trailing n snapshots
func (mp *metricsPoller) Window(n int) []common.Snapshot {
	return mp.history.Window(n)
}

// NetworkRates returns the per interface throughput between the two most recent snapshots
func (mp *metricsPoller) NetworkRates() []common.NetworkRate {
	return history.NetworkRates(mp.history.Window(2))
}

// ClearHistory drops all the stored snapshots
func (mp *metricsPoller) ClearHistory() {
	mp.history.Clear()
	log.Debug("metrics history cleared")
	mp.notifyHandlers()
}

// Preload seeds the history with previously recorded snapshots, oldest first
func (mp *metricsPoller) Preload(snapshots []common.Snapshot) {
	for _, snapshot := range snapshots {
		mp.history.Append(snapshot)
	}
	log.Debug("metrics history preloaded", "num snapshots", len(snapshots), "stored", mp.history.Len())
}

// Subscribe registers a handler called after each committed cycle. Handlers run on the polling routine
// and must not call Stop.
func (mp *metricsPoller) Subscribe(handler MetricsStateHandler) {
	if handler == nil {
		return
	}

	mp.mutHandlers.Lock()
	mp.handlers = append(mp.handlers, handler)
	mp.mutHandlers.Unlock()
}

func (mp *metricsPoller) notifyHandlers() {
	mp.mutHandlers.RLock()
	handlers := make([]MetricsStateHandler, len(mp.handlers))
	copy(handlers, mp.handlers)
	mp.mutHandlers.RUnlock()

	if len(handlers) == 0 {
		return
	}

	state := mp.State()
	for _, handler := range handlers {
		handler(state)
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (mp *metricsPoller) IsInterfaceNil() bool {
	return mp == nil
}
