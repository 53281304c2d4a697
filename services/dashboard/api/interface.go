package api

import (
	"context"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// MetricsPoller defines the metrics poller operations exposed to the view
type MetricsPoller interface {
	State() common.MetricsState
	Window(n int) []common.Snapshot
	NetworkRates() []common.NetworkRate
	ClearHistory()
	RefreshNow(ctx context.Context)
	IsInterfaceNil() bool
}

// SystemInfoPoller defines the system info poller operations exposed to the view
type SystemInfoPoller interface {
	State() common.SystemInfoState
	RefreshNow(ctx context.Context)
	IsInterfaceNil() bool
}

// Controller defines the lifecycle signals the view can send
type Controller interface {
	SetPaused(paused bool)
	TogglePause() bool
	IsPaused() bool
	SetVisibility(visible bool)
	IsVisible() bool
	IsInterfaceNil() bool
}

// SnapshotArchive is the optional persisted history, cleared together with the in-memory one
type SnapshotArchive interface {
	DeleteAll(ctx context.Context) error
	IsInterfaceNil() bool
}
