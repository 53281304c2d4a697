package factory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/history"
)

// stateLogger writes the poller outcomes to the log. Status transitions go to Info, regular cycles to Debug.
type stateLogger struct {
	name string

	mut              sync.Mutex
	lastMetrics      common.PollerStatus
	lastSystemStatus common.PollerStatus
}

func newStateLogger(name string) *stateLogger {
	return &stateLogger{
		name: name,
	}
}

func (sl *stateLogger) logMetricsState(state common.MetricsState) {
	sl.mut.Lock()
	changed := sl.lastMetrics != state.Status
	sl.lastMetrics = state.Status
	sl.mut.Unlock()

	if changed {
		log.Info("metrics poller status changed", "host", sl.name, "status", state.Status,
			"connected", state.Connected, "last error", state.LastError)
	}

	log.Debug("metrics cycle", "host", sl.name, "status", state.Status,
		"history", len(state.History), "failures", state.ConsecutiveFailures,
		"network", formatRates(history.NetworkRates(lastTwo(state.History))))
}

func (sl *stateLogger) logSystemInfoState(state common.SystemInfoState) {
	sl.mut.Lock()
	changed := sl.lastSystemStatus != state.Status
	sl.lastSystemStatus = state.Status
	sl.mut.Unlock()

	if changed {
		log.Info("system info poller status changed", "host", sl.name, "status", state.Status,
			"connected", state.Connected, "last error", state.LastError)
	}
}

func lastTwo(snapshots []common.Snapshot) []common.Snapshot {
	if len(snapshots) < 2 {
		return snapshots
	}

	return snapshots[len(snapshots)-2:]
}

// formatRates renders the rates as "eth0 up 1.2 kB/s down 3.4 MB/s, wlan0 ..."
func formatRates(rates []common.NetworkRate) string {
	if len(rates) == 0 {
		return "n/a"
	}

	parts := make([]string, 0, len(rates))
	for _, rate := range rates {
		parts = append(parts, fmt.Sprintf("%s up %s/s down %s/s", rate.Interface,
			humanize.Bytes(uint64(rate.BytesSentPerSec)), humanize.Bytes(uint64(rate.BytesRecvPerSec))))
	}

	return strings.Join(parts, ", ")
}
