package testsCommon

import (
	"context"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// StoreStub -
type StoreStub struct {
	SaveSnapshotHandler func(ctx context.Context, snapshot common.Snapshot) error
	GetSnapshotsHandler func(ctx context.Context, limit int) ([]common.Snapshot, error)
	DeleteAllHandler    func(ctx context.Context) error
	CloseHandler        func() error
}

// SaveSnapshot -
func (stub *StoreStub) SaveSnapshot(ctx context.Context, snapshot common.Snapshot) error {
	if stub.SaveSnapshotHandler != nil {
		return stub.SaveSnapshotHandler(ctx, snapshot)
	}

	return nil
}

// GetSnapshots -
func (stub *StoreStub) GetSnapshots(ctx context.Context, limit int) ([]common.Snapshot, error) {
	if stub.GetSnapshotsHandler != nil {
		return stub.GetSnapshotsHandler(ctx, limit)
	}

	return make([]common.Snapshot, 0), nil
}

// DeleteAll -
func (stub *StoreStub) DeleteAll(ctx context.Context) error {
	if stub.DeleteAllHandler != nil {
		return stub.DeleteAllHandler(ctx)
	}

	return nil
}

// Close -
func (stub *StoreStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *StoreStub) IsInterfaceNil() bool {
	return stub == nil
}
