package poller

import (
	"context"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// MetricsSource defines the remote endpoint used by the metrics poller
type MetricsSource interface {
	FetchAllMetrics(ctx context.Context) (*common.MetricsPayload, error)
	IsInterfaceNil() bool
}

// SystemInfoSource defines the remote endpoint used by the system info poller
type SystemInfoSource interface {
	FetchOverview(ctx context.Context) (*common.SystemOverview, error)
	IsInterfaceNil() bool
}

// ConnectionTracker folds consecutive fetch outcomes into connectivity information
type ConnectionTracker interface {
	RecordSuccess()
	RecordFailure(err error) string
	ConsecutiveFailures() int
	Connected() bool
	Resolved() bool
	LastError() string
	IsInterfaceNil() bool
}
