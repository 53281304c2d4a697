package api

import "errors"

// ErrEmptyServiceKey signals that no API key was configured for the view server
var ErrEmptyServiceKey = errors.New("empty service key")

// ErrNilHTTPHandler signals that a nil general HTTP handler was provided
var ErrNilHTTPHandler = errors.New("nil http handler")

// ErrNilMetricsPoller signals that a nil metrics poller was provided
var ErrNilMetricsPoller = errors.New("nil metrics poller")

// ErrNilSystemInfoPoller signals that a nil system info poller was provided
var ErrNilSystemInfoPoller = errors.New("nil system info poller")

// ErrNilController signals that a nil lifecycle controller was provided
var ErrNilController = errors.New("nil lifecycle controller")
