package poller

import "errors"

// ErrNilMetricsSource signals that a nil metrics source was provided
var ErrNilMetricsSource = errors.New("nil metrics source")

// ErrNilSystemInfoSource signals that a nil system info source was provided
var ErrNilSystemInfoSource = errors.New("nil system info source")

// ErrInvalidInterval signals a non-positive polling interval
var ErrInvalidInterval = errors.New("invalid polling interval")

var errNilPayload = errors.New("empty response")
