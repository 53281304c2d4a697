package poller

import (
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/tracker"
	"github.com/multiversx/mx-chain-core-go/core/check"
)

// DefaultSystemInfoInterval is the default cadence of the system info poller
const DefaultSystemInfoInterval = 10 * time.Second

const systemInfoFallbackMessage = "Failed to fetch system info"

// SystemInfoStateHandler receives the system info state after each committed cycle
type SystemInfoStateHandler func(state common.SystemInfoState)

// ArgsSystemInfoPoller holds the arguments needed to create a system info poller
type ArgsSystemInfoPoller struct {
	Source                 SystemInfoSource
	Interval               time.Duration
	MaxConsecutiveFailures int
	TimeHandler            func() time.Time
}

// systemInfoPoller polls the heavier processes/services/security overview. It keeps only the latest payload.
type systemInfoPoller struct {
	*basePoller[common.SystemOverview]

	mutHandlers sync.RWMutex
	handlers    []SystemInfoStateHandler
}

// NewSystemInfoPoller creates a stopped system info poller
func NewSystemInfoPoller(args ArgsSystemInfoPoller) (*systemInfoPoller, error) {
	if check.IfNil(args.Source) {
		return nil, ErrNilSystemInfoSource
	}
	if args.Interval <= 0 {
		return nil, ErrInvalidInterval
	}

	connTracker, err := tracker.NewConnectionTracker(args.MaxConsecutiveFailures, systemInfoFallbackMessage)
	if err != nil {
		return nil, err
	}

	sp := &systemInfoPoller{}
	sp.basePoller = newBasePoller(argsBasePoller[common.SystemOverview]{
		name:        "system info",
		interval:    args.Interval,
		fetch:       args.Source.FetchOverview,
		notify:      sp.notifyHandlers,
		tracker:     connTracker,
		timeHandler: args.TimeHandler,
	})

	return sp, nil
}

// State returns the poller state and the latest overview
func (sp *systemInfoPoller) State() common.SystemInfoState {
	state, payload := sp.pollerState()

	return common.SystemInfoState{
		PollerState: state,
		Payload:     payload,
	}
}

// Subscribe registers a handler called after each committed cycle. Handlers run on the polling routine
// and must not call Stop.
func (sp *systemInfoPoller) Subscribe(handler SystemInfoStateHandler) {
	if handler == nil {
		return
	}

	sp.mutHandlers.Lock()
	sp.handlers = append(sp.handlers, handler)
	sp.mutHandlers.Unlock()
}

func (sp *systemInfoPoller) notifyHandlers() {
	sp.mutHandlers.RLock()
	handlers := make([]SystemInfoStateHandler, len(sp.handlers))
	copy(handlers, sp.handlers)
	sp.mutHandlers.RUnlock()

	if len(handlers) == 0 {
		return
	}

	state := sp.State()
	for _, handler := range handlers {
		handler(state)
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (sp *systemInfoPoller) IsInterfaceNil() bool {
	return sp == nil
}
