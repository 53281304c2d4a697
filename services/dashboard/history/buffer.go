package history

import (
	"errors"
	"sync"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
)

// DefaultCapacity is the default number of snapshots retained (~3 minutes at a 3s cadence)
const DefaultCapacity = 60

// ErrInvalidCapacity signals a non-positive buffer capacity
var ErrInvalidCapacity = errors.New("invalid history capacity")

// Buffer is a bounded, order preserving ring of snapshots. When full, the oldest entry is dropped first.
type Buffer struct {
	mut   sync.RWMutex
	data  []common.Snapshot
	head  int
	count int
}

// NewBuffer creates a history buffer able to hold capacity snapshots
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	return &Buffer{
		data: make([]common.Snapshot, capacity),
	}, nil
}

// Append adds the snapshot at the tail, evicting the head if the buffer is full
func (b *Buffer) Append(snapshot common.Snapshot) {
	b.mut.Lock()
	defer b.mut.Unlock()

	b.data[b.head] = snapshot
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// Window returns the last n snapshots in chronological order, or fewer if the history is shorter.
// The returned slice is a copy.
func (b *Buffer) Window(n int) []common.Snapshot {
	b.mut.RLock()
	defer b.mut.RUnlock()

	return b.lastUnprotected(n)
}

// All returns a copy of the whole history, oldest first
func (b *Buffer) All() []common.Snapshot {
	b.mut.RLock()
	defer b.mut.RUnlock()

	return b.lastUnprotected(b.count)
}

// Latest returns the most recent snapshot, if any
func (b *Buffer) Latest() (common.Snapshot, bool) {
	b.mut.RLock()
	defer b.mut.RUnlock()

	if b.count == 0 {
		return common.Snapshot{}, false
	}

	idx := (b.head - 1 + len(b.data)) % len(b.data)
	return b.data[idx], true
}

// Len returns the number of stored snapshots
func (b *Buffer) Len() int {
	b.mut.RLock()
	defer b.mut.RUnlock()

	return b.count
}

// Capacity returns the maximum number of stored snapshots
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Clear drops every stored snapshot
func (b *Buffer) Clear() {
	b.mut.Lock()
	defer b.mut.Unlock()

	for i := range b.data {
		b.data[i] = common.Snapshot{}
	}
	b.head = 0
	b.count = 0
}

func (b *Buffer) lastUnprotected(n int) []common.Snapshot {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return make([]common.Snapshot, 0)
	}

	size := len(b.data)
	result := make([]common.Snapshot, n)
	start := (b.head - n + size) % size
	for i := 0; i < n; i++ {
		result[i] = b.data[(start+i)%size]
	}

	return result
}

// IsInterfaceNil returns true if the value under the interface is nil
func (b *Buffer) IsInterfaceNil() bool {
	return b == nil
}
