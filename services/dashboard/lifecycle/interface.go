package lifecycle

// Poller defines a component whose periodic timer is owned by the controller
type Poller interface {
	Start()
	Stop()
	IsInterfaceNil() bool
}

// PausablePoller is a poller that also accepts the user pause signal
type PausablePoller interface {
	Poller
	SetPaused(paused bool)
	TogglePause() bool
	IsPaused() bool
}
