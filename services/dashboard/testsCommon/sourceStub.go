package testsCommon

import (
	"context"
	"encoding/json"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// SourceStub -
type SourceStub struct {
	FetchAllMetricsHandler func(ctx context.Context) (*common.MetricsPayload, error)
	FetchMetricHandler     func(ctx context.Context, domain string) (json.RawMessage, error)
	FetchOverviewHandler   func(ctx context.Context) (*common.SystemOverview, error)
	FetchSystemInfoHandler func(ctx context.Context, domain string) (json.RawMessage, error)
	HealthHandler          func(ctx context.Context) error
}

// FetchAllMetrics -
func (stub *SourceStub) FetchAllMetrics(ctx context.Context) (*common.MetricsPayload, error) {
	if stub.FetchAllMetricsHandler != nil {
		return stub.FetchAllMetricsHandler(ctx)
	}

	return &common.MetricsPayload{}, nil
}

// FetchMetric -
func (stub *SourceStub) FetchMetric(ctx context.Context, domain string) (json.RawMessage, error) {
	if stub.FetchMetricHandler != nil {
		return stub.FetchMetricHandler(ctx, domain)
	}

	return json.RawMessage(`{}`), nil
}

// FetchOverview -
func (stub *SourceStub) FetchOverview(ctx context.Context) (*common.SystemOverview, error) {
	if stub.FetchOverviewHandler != nil {
		return stub.FetchOverviewHandler(ctx)
	}

	return &common.SystemOverview{}, nil
}

// FetchSystemInfo -
func (stub *SourceStub) FetchSystemInfo(ctx context.Context, domain string) (json.RawMessage, error) {
	if stub.FetchSystemInfoHandler != nil {
		return stub.FetchSystemInfoHandler(ctx, domain)
	}

	return json.RawMessage(`{}`), nil
}

// Health -
func (stub *SourceStub) Health(ctx context.Context) error {
	if stub.HealthHandler != nil {
		return stub.HealthHandler(ctx)
	}

	return nil
}

// IsInterfaceNil -
func (stub *SourceStub) IsInterfaceNil() bool {
	return stub == nil
}
