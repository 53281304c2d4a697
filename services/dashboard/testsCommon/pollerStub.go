package testsCommon

import "sync"

// PollerStub -
type PollerStub struct {
	mut              sync.Mutex
	StartHandler     func()
	StopHandler      func()
	SetPausedHandler func(paused bool)
	numStart         int
	numStop          int
	running          bool
	paused           bool
}

// Start -
func (stub *PollerStub) Start() {
	stub.mut.Lock()
	stub.numStart++
	stub.running = true
	stub.mut.Unlock()

	if stub.StartHandler != nil {
		stub.StartHandler()
	}
}

// Stop -
func (stub *PollerStub) Stop() {
	stub.mut.Lock()
	stub.numStop++
	stub.running = false
	stub.mut.Unlock()

	if stub.StopHandler != nil {
		stub.StopHandler()
	}
}

// SetPaused -
func (stub *PollerStub) SetPaused(paused bool) {
	stub.mut.Lock()
	stub.paused = paused
	stub.mut.Unlock()

	if stub.SetPausedHandler != nil {
		stub.SetPausedHandler(paused)
	}
}

// TogglePause -
func (stub *PollerStub) TogglePause() bool {
	stub.mut.Lock()
	paused := !stub.paused
	stub.mut.Unlock()

	stub.SetPaused(paused)

	return paused
}

// IsPaused -
func (stub *PollerStub) IsPaused() bool {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.paused
}

// IsRunning -
func (stub *PollerStub) IsRunning() bool {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.running
}

// NumStart -
func (stub *PollerStub) NumStart() int {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.numStart
}

// NumStop -
func (stub *PollerStub) NumStop() int {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.numStop
}

// IsInterfaceNil -
func (stub *PollerStub) IsInterfaceNil() bool {
	return stub == nil
}
