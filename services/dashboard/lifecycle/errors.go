package lifecycle

import "errors"

// ErrNilMetricsPoller signals that a nil metrics poller was provided
var ErrNilMetricsPoller = errors.New("nil metrics poller")

// ErrNilSystemInfoPoller signals that a nil system info poller was provided
var ErrNilSystemInfoPoller = errors.New("nil system info poller")
