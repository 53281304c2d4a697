package factory

import (
	"context"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/poller"
)

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start()
	Address() string
	BroadcastMetricsState(state common.MetricsState)
	BroadcastSystemInfoState(state common.SystemInfoState)
	Close() error
	IsInterfaceNil() bool
}

// MetricsPoller defines the metrics poller operations used by the components handler
type MetricsPoller interface {
	Start()
	Stop()
	IsRunning() bool
	RefreshNow(ctx context.Context)
	SetPaused(paused bool)
	TogglePause() bool
	IsPaused() bool
	State() common.MetricsState
	History() []common.Snapshot
	Window(n int) []common.Snapshot
	NetworkRates() []common.NetworkRate
	ClearHistory()
	Preload(snapshots []common.Snapshot)
	Subscribe(handler poller.MetricsStateHandler)
	IsInterfaceNil() bool
}

// SystemInfoPoller defines the system info poller operations used by the components handler
type SystemInfoPoller interface {
	Start()
	Stop()
	IsRunning() bool
	RefreshNow(ctx context.Context)
	State() common.SystemInfoState
	Subscribe(handler poller.SystemInfoStateHandler)
	IsInterfaceNil() bool
}

// Controller defines the lifecycle operations
type Controller interface {
	Mount()
	Unmount()
	SetVisibility(visible bool)
	SetPaused(paused bool)
	TogglePause() bool
	IsPaused() bool
	IsVisible() bool
	IsMounted() bool
	IsInterfaceNil() bool
}

// SnapshotArchive defines the persisted snapshot history
type SnapshotArchive interface {
	SaveSnapshot(ctx context.Context, snapshot common.Snapshot) error
	GetSnapshots(ctx context.Context, limit int) ([]common.Snapshot, error)
	DeleteAll(ctx context.Context) error
	Close() error
	IsInterfaceNil() bool
}

// HealthChecker probes the metrics backend
type HealthChecker interface {
	Health(ctx context.Context) error
	IsInterfaceNil() bool
}
