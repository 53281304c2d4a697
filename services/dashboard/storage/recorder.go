package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
)

const defaultSaveTimeout = 5 * time.Second

// ErrNilSnapshotSaver signals that a nil snapshot saver was provided
var ErrNilSnapshotSaver = errors.New("nil snapshot saver")

// snapshotRecorder persists every new history entry observed in the metrics poller state
type snapshotRecorder struct {
	saver       SnapshotSaver
	saveTimeout time.Duration

	mut       sync.Mutex
	lastSaved time.Time
}

// NewSnapshotRecorder creates a recorder. Snapshots older than or equal to lastSaved are not written again.
func NewSnapshotRecorder(saver SnapshotSaver, lastSaved time.Time) (*snapshotRecorder, error) {
	if check.IfNil(saver) {
		return nil, ErrNilSnapshotSaver
	}

	return &snapshotRecorder{
		saver:       saver,
		saveTimeout: defaultSaveTimeout,
		lastSaved:   lastSaved,
	}, nil
}

// HandleMetricsState is meant to be subscribed to the metrics poller
func (recorder *snapshotRecorder) HandleMetricsState(state common.MetricsState) {
	recorder.mut.Lock()
	defer recorder.mut.Unlock()

	for _, snapshot := range state.History {
		if !snapshot.Timestamp.After(recorder.lastSaved) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), recorder.saveTimeout)
		err := recorder.saver.SaveSnapshot(ctx, snapshot)
		cancel()
		if err != nil {
			log.Warn("failed to save snapshot", "timestamp", snapshot.Timestamp, "error", err)
			return
		}

		recorder.lastSaved = snapshot.Timestamp
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (recorder *snapshotRecorder) IsInterfaceNil() bool {
	return recorder == nil
}
