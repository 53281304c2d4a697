package lifecycle

import (
	"sync"

	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("lifecycle")

// ArgsController holds the arguments needed to create a lifecycle controller
type ArgsController struct {
	MetricsPoller    PausablePoller
	SystemInfoPoller Poller
}

// controller is the only component allowed to start and stop the pollers' timers. Pollers run while the
// view is both mounted and visible.
type controller struct {
	metricsPoller    PausablePoller
	systemInfoPoller Poller

	mut     sync.Mutex
	mounted bool
	visible bool
	running bool
}

// NewController creates a controller for an unmounted, visible view
func NewController(args ArgsController) (*controller, error) {
	if check.IfNil(args.MetricsPoller) {
		return nil, ErrNilMetricsPoller
	}
	if check.IfNil(args.SystemInfoPoller) {
		return nil, ErrNilSystemInfoPoller
	}

	return &controller{
		metricsPoller:    args.MetricsPoller,
		systemInfoPoller: args.SystemInfoPoller,
		visible:          true,
	}, nil
}

// Mount starts the pollers if the view is visible. A second Mount does nothing.
func (c *controller) Mount() {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.mounted {
		return
	}

	c.mounted = true
	log.Debug("view mounted", "visible", c.visible)
	c.syncPollersUnprotected()
}

// Unmount stops every poller unconditionally
func (c *controller) Unmount() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.mounted = false
	c.stopPollersUnprotected()
	log.Debug("view unmounted")
}

// SetVisibility stops the pollers when the view gets hidden and restarts them, with an immediate fetch,
// when it becomes visible again. Repeated signals with the same value are ignored.
func (c *controller) SetVisibility(visible bool) {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.visible == visible {
		return
	}

	c.visible = visible
	log.Debug("view visibility changed", "visible", visible)
	c.syncPollersUnprotected()
}

// SetPaused forwards the user pause signal to the metrics poller
func (c *controller) SetPaused(paused bool) {
	c.metricsPoller.SetPaused(paused)
}

// TogglePause flips the metrics poller pause flag and returns the new value
func (c *controller) TogglePause() bool {
	return c.metricsPoller.TogglePause()
}

// IsPaused returns the metrics poller pause flag
func (c *controller) IsPaused() bool {
	return c.metricsPoller.IsPaused()
}

// IsVisible returns the last visibility signal
func (c *controller) IsVisible() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.visible
}

// IsMounted returns true between Mount and Unmount
func (c *controller) IsMounted() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.mounted
}

func (c *controller) syncPollersUnprotected() {
	shouldRun := c.mounted && c.visible
	if shouldRun == c.running {
		return
	}

	if shouldRun {
		c.running = true
		c.metricsPoller.Start()
		c.systemInfoPoller.Start()
		return
	}

	c.stopPollersUnprotected()
}

func (c *controller) stopPollersUnprotected() {
	c.running = false
	c.metricsPoller.Stop()
	c.systemInfoPoller.Stop()
}

// Close unmounts the view
func (c *controller) Close() error {
	c.Unmount()

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *controller) IsInterfaceNil() bool {
	return c == nil
}
