package history

import (
	"sort"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/tidwall/gjson"
)

// NetworkRates computes the per interface throughput between the two most recent snapshots of the window.
// Interfaces missing from either snapshot are skipped and counter resets yield a zero rate.
func NetworkRates(window []common.Snapshot) []common.NetworkRate {
	if len(window) < 2 {
		return nil
	}

	older := window[len(window)-2]
	newer := window[len(window)-1]
	dt := newer.Timestamp.Sub(older.Timestamp).Seconds()
	if dt <= 0 {
		return nil
	}

	olderInterfaces := gjson.GetBytes(older.Network, "interfaces")
	rates := make([]common.NetworkRate, 0)
	gjson.GetBytes(newer.Network, "interfaces").ForEach(func(key, value gjson.Result) bool {
		previous := olderInterfaces.Get(gjson.Escape(key.String()))
		if !previous.Exists() {
			return true
		}

		rates = append(rates, common.NetworkRate{
			Interface:       key.String(),
			BytesSentPerSec: rate(previous.Get("bytes_sent").Uint(), value.Get("bytes_sent").Uint(), dt),
			BytesRecvPerSec: rate(previous.Get("bytes_recv").Uint(), value.Get("bytes_recv").Uint(), dt),
		})
		return true
	})

	sort.Slice(rates, func(i, j int) bool {
		return rates[i].Interface < rates[j].Interface
	})

	return rates
}

func rate(prev uint64, curr uint64, seconds float64) float64 {
	if curr < prev {
		return 0
	}

	return float64(curr-prev) / seconds
}
