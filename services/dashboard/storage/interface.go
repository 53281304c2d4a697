package storage

import (
	"context"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// SnapshotSaver defines the write side of the snapshot archive
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snapshot common.Snapshot) error
	IsInterfaceNil() bool
}
