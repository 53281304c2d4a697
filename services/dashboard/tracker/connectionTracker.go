package tracker

import (
	"errors"
	"sync"
)

// DefaultMaxConsecutiveFailures is the number of consecutive failures after which the connection is reported lost
const DefaultMaxConsecutiveFailures = 5

// ConnectionLostMessage replaces the last error once the failure threshold is reached
const ConnectionLostMessage = "Connection lost. Please check if the backend is running."

// ErrInvalidThreshold signals a non-positive failure threshold
var ErrInvalidThreshold = errors.New("invalid consecutive failures threshold")

// connectionTracker folds consecutive fetch outcomes into a connectivity flag and an operator facing message.
// The counter never stops polling, it only changes the message.
type connectionTracker struct {
	mut                 sync.RWMutex
	maxFailures         int
	fallbackMessage     string
	consecutiveFailures int
	resolved            bool
	lastSucceeded       bool
	lastError           string
}

// NewConnectionTracker creates a tracker. The fallback message is used for errors without text.
func NewConnectionTracker(maxFailures int, fallbackMessage string) (*connectionTracker, error) {
	if maxFailures <= 0 {
		return nil, ErrInvalidThreshold
	}

	return &connectionTracker{
		maxFailures:     maxFailures,
		fallbackMessage: fallbackMessage,
	}, nil
}

// RecordSuccess resets the failure counter regardless of how long the failure run was
func (ct *connectionTracker) RecordSuccess() {
	ct.mut.Lock()
	defer ct.mut.Unlock()

	ct.resolved = true
	ct.lastSucceeded = true
	ct.consecutiveFailures = 0
	ct.lastError = ""
}

// RecordFailure increments the failure counter and returns the message to display
func (ct *connectionTracker) RecordFailure(err error) string {
	ct.mut.Lock()
	defer ct.mut.Unlock()

	ct.resolved = true
	ct.lastSucceeded = false
	ct.consecutiveFailures++

	switch {
	case ct.consecutiveFailures >= ct.maxFailures:
		ct.lastError = ConnectionLostMessage
	case err != nil && len(err.Error()) > 0:
		ct.lastError = err.Error()
	default:
		ct.lastError = ct.fallbackMessage
	}

	return ct.lastError
}

// ConsecutiveFailures returns the length of the current failure run
func (ct *connectionTracker) ConsecutiveFailures() int {
	ct.mut.RLock()
	defer ct.mut.RUnlock()

	return ct.consecutiveFailures
}

// Connected returns true if the most recent resolved fetch succeeded. It is false before any fetch resolved.
func (ct *connectionTracker) Connected() bool {
	ct.mut.RLock()
	defer ct.mut.RUnlock()

	return ct.resolved && ct.lastSucceeded
}

// Resolved returns true once at least one fetch outcome was recorded
func (ct *connectionTracker) Resolved() bool {
	ct.mut.RLock()
	defer ct.mut.RUnlock()

	return ct.resolved
}

// LastError returns the current error message, empty after a success
func (ct *connectionTracker) LastError() string {
	ct.mut.RLock()
	defer ct.mut.RUnlock()

	return ct.lastError
}

// IsInterfaceNil returns true if the value under the interface is nil
func (ct *connectionTracker) IsInterfaceNil() bool {
	return ct == nil
}
