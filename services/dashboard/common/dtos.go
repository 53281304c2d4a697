package common

import (
	"encoding/json"
	"time"
)

// PollerStatus is the coarse state of a poller
type PollerStatus string

const (
	// StatusIdle means the last fetch succeeded and the poller waits for the next tick
	StatusIdle PollerStatus = "idle"
	// StatusFetching means a fetch is in flight
	StatusFetching PollerStatus = "fetching"
	// StatusPaused means scheduled fetches are suspended by the operator
	StatusPaused PollerStatus = "paused"
	// StatusError means the last fetch failed
	StatusError PollerStatus = "error"
)

// Snapshot is one timestamped sample of the host telemetry. The metric fields are opaque to the engine.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	CPU       json.RawMessage `json:"cpu"`
	Memory    json.RawMessage `json:"memory"`
	Disk      json.RawMessage `json:"disk"`
	Network   json.RawMessage `json:"network"`
}

// MetricsPayload is the response of the combined metrics endpoint
type MetricsPayload struct {
	CPU     json.RawMessage `json:"cpu"`
	Memory  json.RawMessage `json:"memory"`
	Disk    json.RawMessage `json:"disk"`
	Network json.RawMessage `json:"network"`
}

// ToSnapshot builds the history entry recorded for this payload
func (payload *MetricsPayload) ToSnapshot(timestamp time.Time) Snapshot {
	return Snapshot{
		Timestamp: timestamp,
		CPU:       payload.CPU,
		Memory:    payload.Memory,
		Disk:      payload.Disk,
		Network:   payload.Network,
	}
}

// SystemOverview is the response of the system overview endpoint
type SystemOverview struct {
	Processes json.RawMessage `json:"processes"`
	Services  json.RawMessage `json:"services"`
	Security  json.RawMessage `json:"security"`
}

// PollerState is the observable state of a poller after its most recent cycle
type PollerState struct {
	Status              PollerStatus `json:"status"`
	LastError           string       `json:"lastError,omitempty"`
	LastUpdated         time.Time    `json:"lastUpdated"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	Connected           bool         `json:"connected"`
	Loading             bool         `json:"loading"`
}

// MetricsState is what the metrics poller hands to its subscribers
type MetricsState struct {
	PollerState
	Payload *MetricsPayload `json:"payload,omitempty"`
	History []Snapshot      `json:"history"`
}

// SystemInfoState is what the system info poller hands to its subscribers
type SystemInfoState struct {
	PollerState
	Payload *SystemOverview `json:"payload,omitempty"`
}

// NetworkRate is the throughput of one interface between two consecutive snapshots
type NetworkRate struct {
	Interface       string  `json:"interface"`
	BytesSentPerSec float64 `json:"bytesSentPerSec"`
	BytesRecvPerSec float64 `json:"bytesRecvPerSec"`
}
