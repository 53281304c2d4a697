package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/history"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/source"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/testsCommon"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

func createPayload(index int) *common.MetricsPayload {
	return &common.MetricsPayload{
		CPU:     json.RawMessage(fmt.Sprintf(`{"usage_percent": %d}`, index)),
		Memory:  json.RawMessage(`{"total": 4096, "used": 1024}`),
		Disk:    json.RawMessage(`{"total": 64000, "used": 16000}`),
		Network: json.RawMessage(fmt.Sprintf(`{"interfaces": {"eth0": {"bytes_sent": %d, "bytes_recv": %d}}}`, index*1000, index*2000)),
	}
}

// fakeClock advances by step on each call
type fakeClock struct {
	mut  sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{
		now:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		step: step,
	}
}

func (fc *fakeClock) Now() time.Time {
	fc.mut.Lock()
	defer fc.mut.Unlock()

	fc.now = fc.now.Add(fc.step)
	return fc.now
}

func createMockArgs() ArgsMetricsPoller {
	return ArgsMetricsPoller{
		Source:                 &testsCommon.SourceStub{},
		Interval:               DefaultMetricsInterval,
		MaxHistory:             history.DefaultCapacity,
		MaxConsecutiveFailures: tracker.DefaultMaxConsecutiveFailures,
	}
}

// countingSource returns sequential payloads and counts the calls
type countingSource struct {
	testsCommon.SourceStub
	numCalls atomic.Int64
}

func newCountingSource() *countingSource {
	cs := &countingSource{}
	cs.FetchAllMetricsHandler = func(ctx context.Context) (*common.MetricsPayload, error) {
		index := cs.numCalls.Add(1)
		return createPayload(int(index)), nil
	}

	return cs
}

func TestNewMetricsPoller(t *testing.T) {
	t.Parallel()

	t.Run("nil source should error", func(t *testing.T) {
		args := createMockArgs()
		args.Source = nil

		mp, err := NewMetricsPoller(args)
		assert.Nil(t, mp)
		assert.True(t, mp.IsInterfaceNil())
		assert.Equal(t, ErrNilMetricsSource, err)
	})
	t.Run("invalid interval should error", func(t *testing.T) {
		args := createMockArgs()
		args.Interval = 0

		mp, err := NewMetricsPoller(args)
		assert.Nil(t, mp)
		assert.Equal(t, ErrInvalidInterval, err)
	})
	t.Run("invalid history capacity should error", func(t *testing.T) {
		args := createMockArgs()
		args.MaxHistory = 0

		mp, err := NewMetricsPoller(args)
		assert.Nil(t, mp)
		assert.Equal(t, history.ErrInvalidCapacity, err)
	})
	t.Run("invalid failure threshold should error", func(t *testing.T) {
		args := createMockArgs()
		args.MaxConsecutiveFailures = 0

		mp, err := NewMetricsPoller(args)
		assert.Nil(t, mp)
		assert.Equal(t, tracker.ErrInvalidThreshold, err)
	})
	t.Run("should work", func(t *testing.T) {
		mp, err := NewMetricsPoller(createMockArgs())
		assert.Nil(t, err)
		assert.False(t, mp.IsInterfaceNil())
		assert.False(t, mp.IsRunning())
		assert.False(t, mp.IsPaused())

		state := mp.State()
		assert.Equal(t, common.StatusIdle, state.Status)
		assert.True(t, state.Loading)
		assert.False(t, state.Connected)
		assert.Nil(t, state.Payload)
		assert.Empty(t, state.History)
	})
}

func TestMetricsPoller_FailuresThenSuccessScenario(t *testing.T) {
	t.Parallel()

	var numRequests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if numRequests.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		_, _ = w.Write([]byte(`{"cpu": {"usage_percent": 3}, "memory": {}, "disk": {}, "network": {"interfaces": {}}}`))
	}))
	defer server.Close()

	src, err := source.NewHTTPSource(source.ArgsHTTPSource{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	args := createMockArgs()
	args.Source = src
	mp, err := NewMetricsPoller(args)
	require.NoError(t, err)

	var statuses []common.PollerStatus
	var failures []int
	mp.Subscribe(func(state common.MetricsState) {
		statuses = append(statuses, state.Status)
		failures = append(failures, state.ConsecutiveFailures)
	})

	for i := 0; i < 4; i++ {
		mp.RefreshNow(context.Background())
	}

	assert.Equal(t, []common.PollerStatus{common.StatusError, common.StatusError, common.StatusError, common.StatusIdle}, statuses)
	assert.Equal(t, []int{1, 2, 3, 0}, failures)

	state := mp.State()
	require.Len(t, state.History, 1)
	assert.JSONEq(t, `{"usage_percent": 3}`, string(state.History[0].CPU))
	assert.True(t, state.Connected)
	assert.Empty(t, state.LastError)
	assert.False(t, state.LastUpdated.IsZero())
}

func TestMetricsPoller_FailureThresholdKeepsPolling(t *testing.T) {
	t.Parallel()

	var numCalls atomic.Int64
	args := createMockArgs()
	args.Interval = 5 * time.Millisecond
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			numCalls.Add(1)
			return nil, errBackendDown
		},
	}
	mp, _ := NewMetricsPoller(args)

	mp.Start()
	defer mp.Stop()

	require.Eventually(t, func() bool {
		return numCalls.Load() > int64(2*tracker.DefaultMaxConsecutiveFailures)
	}, 5*time.Second, 5*time.Millisecond)

	state := mp.State()
	assert.Equal(t, common.StatusError, state.Status)
	assert.Equal(t, tracker.ConnectionLostMessage, state.LastError)
	assert.False(t, state.Connected)
	assert.False(t, state.Loading)
	assert.True(t, mp.IsRunning())
}

func TestMetricsPoller_ErrorMessageBeforeThreshold(t *testing.T) {
	t.Parallel()

	args := createMockArgs()
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			return nil, errBackendDown
		},
	}
	mp, _ := NewMetricsPoller(args)

	mp.RefreshNow(context.Background())
	assert.Equal(t, errBackendDown.Error(), mp.State().LastError)

	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			return nil, nil
		},
	}
	mp, _ = NewMetricsPoller(args)
	mp.RefreshNow(context.Background())
	assert.Equal(t, errNilPayload.Error(), mp.State().LastError)
}

func TestMetricsPoller_HistoryLengthAndOrder(t *testing.T) {
	t.Parallel()

	for _, numFetches := range []int{0, 1, 59, 60, 61, 150} {
		numFetches := numFetches
		t.Run(fmt.Sprintf("%d fetches", numFetches), func(t *testing.T) {
			t.Parallel()

			args := createMockArgs()
			args.Source = newCountingSource()
			mp, _ := NewMetricsPoller(args)

			for i := 0; i < numFetches; i++ {
				mp.RefreshNow(context.Background())
			}

			expectedLen := numFetches
			if expectedLen > history.DefaultCapacity {
				expectedLen = history.DefaultCapacity
			}
			hist := mp.History()
			require.Len(t, hist, expectedLen)
			for i := 1; i < len(hist); i++ {
				assert.False(t, hist[i].Timestamp.Before(hist[i-1].Timestamp))
			}
			if expectedLen > 0 {
				assert.JSONEq(t, fmt.Sprintf(`{"usage_percent": %d}`, numFetches), string(hist[expectedLen-1].CPU))
			}
		})
	}
}

func TestMetricsPoller_EvictionScenario(t *testing.T) {
	t.Parallel()

	var numCalls atomic.Int64
	clock := newFakeClock(time.Second)
	args := createMockArgs()
	args.Interval = 10 * time.Millisecond
	args.MaxHistory = 3
	args.TimeHandler = clock.Now
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			index := numCalls.Add(1)
			if index > 5 {
				return nil, errBackendDown
			}
			return createPayload(int(index)), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	mp.Start()
	require.Eventually(t, func() bool {
		return numCalls.Load() > 5
	}, 5*time.Second, 5*time.Millisecond)
	mp.Stop()

	hist := mp.History()
	require.Len(t, hist, 3)
	for i, expectedIndex := range []int{3, 4, 5} {
		assert.JSONEq(t, fmt.Sprintf(`{"usage_percent": %d}`, expectedIndex), string(hist[i].CPU))
	}
	assert.Equal(t, time.Second, hist[1].Timestamp.Sub(hist[0].Timestamp))
	assert.Equal(t, time.Second, hist[2].Timestamp.Sub(hist[1].Timestamp))
}

func TestMetricsPoller_StartFetchesImmediately(t *testing.T) {
	t.Parallel()

	cs := newCountingSource()
	args := createMockArgs()
	args.Source = cs
	args.Interval = time.Hour
	mp, _ := NewMetricsPoller(args)

	mp.Start()
	defer mp.Stop()

	require.Eventually(t, func() bool {
		return cs.numCalls.Load() == 1
	}, time.Second, time.Millisecond)

	mp.Start()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), cs.numCalls.Load(), "a second Start on a running poller must be ignored")
}

func TestMetricsPoller_Pause(t *testing.T) {
	t.Parallel()

	cs := newCountingSource()
	args := createMockArgs()
	args.Source = cs
	args.Interval = 10 * time.Millisecond
	mp, _ := NewMetricsPoller(args)

	var numUpdates atomic.Int64
	mp.Subscribe(func(state common.MetricsState) {
		numUpdates.Add(1)
	})

	mp.Start()
	defer mp.Stop()

	require.Eventually(t, func() bool {
		return cs.numCalls.Load() >= 2
	}, time.Second, time.Millisecond)

	mp.SetPaused(true)
	assert.True(t, mp.IsPaused())
	time.Sleep(30 * time.Millisecond) // let a cycle that was already in flight commit

	historyLen := len(mp.History())
	callsWhilePaused := cs.numCalls.Load()
	updatesWhilePaused := numUpdates.Load()
	assert.NotEqual(t, common.StatusFetching, mp.State().Status)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, callsWhilePaused, cs.numCalls.Load(), "paused poller must not fetch on ticks")
	assert.Equal(t, historyLen, len(mp.History()), "pausing must keep the history")
	assert.True(t, mp.IsRunning())

	mp.RefreshNow(context.Background())
	assert.Equal(t, callsWhilePaused+1, cs.numCalls.Load())
	assert.Equal(t, updatesWhilePaused+1, numUpdates.Load())
	assert.Equal(t, historyLen+1, len(mp.History()))
	assert.Equal(t, common.StatusIdle, mp.State().Status, "a successful refresh reports idle, the pause flag is kept")
	assert.True(t, mp.IsPaused())

	mp.SetPaused(false)
	assert.False(t, mp.IsPaused())
	require.Eventually(t, func() bool {
		return cs.numCalls.Load() > callsWhilePaused+2
	}, time.Second, time.Millisecond)
}

func TestMetricsPoller_StateFollowsConnectionTracker(t *testing.T) {
	t.Parallel()

	failing := true
	args := createMockArgs()
	args.MaxConsecutiveFailures = 2
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			if failing {
				return nil, errBackendDown
			}
			return createPayload(1), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	state := mp.State()
	assert.True(t, state.Loading)
	assert.False(t, state.Connected)

	mp.RefreshNow(context.Background())
	state = mp.State()
	assert.False(t, state.Loading, "a failed fetch also ends the loading phase")
	assert.False(t, state.Connected)
	assert.Equal(t, errBackendDown.Error(), state.LastError)

	mp.RefreshNow(context.Background())
	assert.Equal(t, tracker.ConnectionLostMessage, mp.State().LastError)

	failing = false
	mp.RefreshNow(context.Background())
	state = mp.State()
	assert.True(t, state.Connected)
	assert.Empty(t, state.LastError)
	assert.Equal(t, 0, state.ConsecutiveFailures)
}

type refreshMarker struct{}

func TestMetricsPoller_PauseWhileTickWaitsBehindRefresh(t *testing.T) {
	t.Parallel()

	var numScheduledCalls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	args := createMockArgs()
	args.Interval = 20 * time.Millisecond
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			if ctx.Value(refreshMarker{}) != nil {
				close(entered)
				<-release
				return createPayload(0), nil
			}

			return createPayload(int(numScheduledCalls.Add(1))), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	mp.Start()
	defer mp.Stop()

	require.Eventually(t, func() bool {
		return numScheduledCalls.Load() >= 1
	}, time.Second, time.Millisecond)

	refreshDone := make(chan struct{})
	go func() {
		mp.RefreshNow(context.WithValue(context.Background(), refreshMarker{}, true))
		close(refreshDone)
	}()
	<-entered

	// several ticks fire while the refresh holds the cycle guard, one of them is left waiting for it
	time.Sleep(3 * args.Interval)
	mp.SetPaused(true)
	callsAtPause := numScheduledCalls.Load()

	close(release)
	<-refreshDone
	time.Sleep(5 * args.Interval)

	assert.Equal(t, callsAtPause, numScheduledCalls.Load(), "no scheduled fetch may start once paused")
	assert.True(t, mp.IsRunning())

	mp.SetPaused(false)
	require.Eventually(t, func() bool {
		return numScheduledCalls.Load() > callsAtPause
	}, time.Second, time.Millisecond)
}

func TestMetricsPoller_StartWhilePausedDoesNotFetch(t *testing.T) {
	t.Parallel()

	cs := newCountingSource()
	args := createMockArgs()
	args.Source = cs
	args.Interval = 10 * time.Millisecond
	mp, _ := NewMetricsPoller(args)

	mp.SetPaused(true)
	mp.Start()
	defer mp.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), cs.numCalls.Load())
	assert.True(t, mp.State().Loading)

	mp.RefreshNow(context.Background())
	assert.Equal(t, int64(1), cs.numCalls.Load())
	assert.False(t, mp.State().Loading)
}

func TestMetricsPoller_SetPausedStatus(t *testing.T) {
	t.Parallel()

	failing := true
	args := createMockArgs()
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			if failing {
				return nil, errBackendDown
			}
			return createPayload(1), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	var numUpdates int
	mp.Subscribe(func(state common.MetricsState) {
		numUpdates++
	})

	mp.SetPaused(false)
	assert.Equal(t, 0, numUpdates, "setting the same pause value must not notify")

	mp.RefreshNow(context.Background())
	assert.Equal(t, common.StatusError, mp.State().Status)

	assert.True(t, mp.TogglePause())
	assert.Equal(t, common.StatusError, mp.State().Status, "pausing keeps a failure visible")
	assert.False(t, mp.State().Connected)

	mp.RefreshNow(context.Background())
	assert.Equal(t, common.StatusError, mp.State().Status, "a failed refresh while paused reports the error")

	assert.False(t, mp.TogglePause())
	assert.Equal(t, common.StatusError, mp.State().Status)

	failing = false
	mp.RefreshNow(context.Background())
	assert.Equal(t, common.StatusIdle, mp.State().Status)

	mp.SetPaused(true)
	assert.Equal(t, common.StatusPaused, mp.State().Status)

	mp.RefreshNow(context.Background())
	assert.Equal(t, common.StatusIdle, mp.State().Status)
	assert.True(t, mp.IsPaused())

	mp.SetPaused(false)
	assert.Equal(t, common.StatusIdle, mp.State().Status)

	mp.SetPaused(true)
	assert.Equal(t, common.StatusPaused, mp.State().Status)
	mp.SetPaused(false)
	assert.Equal(t, common.StatusIdle, mp.State().Status)
	assert.Equal(t, 10, numUpdates)
}

func TestMetricsPoller_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	cs := newCountingSource()
	args := createMockArgs()
	args.Source = cs
	args.Interval = 5 * time.Millisecond
	mp, _ := NewMetricsPoller(args)

	assert.NotPanics(t, mp.Stop, "stopping a never started poller")

	mp.Start()
	require.Eventually(t, func() bool {
		return cs.numCalls.Load() >= 2
	}, time.Second, time.Millisecond)

	mp.Stop()
	assert.False(t, mp.IsRunning())
	assert.NotPanics(t, mp.Stop)

	callsAfterStop := cs.numCalls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAfterStop, cs.numCalls.Load(), "no tick may fire after Stop returned")
}

func TestMetricsPoller_StopDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	args := createMockArgs()
	args.Interval = time.Hour
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			close(entered)
			<-release
			return createPayload(1), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	var numUpdates atomic.Int64
	mp.Subscribe(func(state common.MetricsState) {
		numUpdates.Add(1)
	})

	mp.Start()
	<-entered
	assert.Equal(t, common.StatusFetching, mp.State().Status)

	stopped := make(chan struct{})
	go func() {
		mp.Stop()
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return !mp.IsRunning()
	}, time.Second, time.Millisecond)
	close(release)
	<-stopped

	state := mp.State()
	assert.Empty(t, state.History)
	assert.Nil(t, state.Payload)
	assert.True(t, state.LastUpdated.IsZero())
	assert.True(t, state.Loading)
	assert.Equal(t, common.StatusIdle, state.Status)
	assert.Equal(t, int64(0), numUpdates.Load())
}

func TestMetricsPoller_NoOverlappingFetches(t *testing.T) {
	t.Parallel()

	var inFlight atomic.Int64
	var maxInFlight atomic.Int64
	var numCalls atomic.Int64
	args := createMockArgs()
	args.Interval = 2 * time.Millisecond
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				previous := maxInFlight.Load()
				if current <= previous || maxInFlight.CompareAndSwap(previous, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			return createPayload(int(numCalls.Add(1))), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	mp.Start()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mp.RefreshNow(context.Background())
		}()
	}
	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	mp.Stop()

	assert.Equal(t, int64(1), maxInFlight.Load())
	assert.True(t, numCalls.Load() >= 5)

	hist := mp.History()
	for i := 1; i < len(hist); i++ {
		assert.False(t, hist[i].Timestamp.Before(hist[i-1].Timestamp))
	}
}

func TestMetricsPoller_RestartAfterStop(t *testing.T) {
	t.Parallel()

	cs := newCountingSource()
	args := createMockArgs()
	args.Source = cs
	args.Interval = time.Hour
	mp, _ := NewMetricsPoller(args)

	mp.Start()
	require.Eventually(t, func() bool {
		return cs.numCalls.Load() == 1
	}, time.Second, time.Millisecond)
	mp.Stop()

	mp.Start()
	defer mp.Stop()
	require.Eventually(t, func() bool {
		return cs.numCalls.Load() == 2
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return len(mp.History()) == 2
	}, time.Second, time.Millisecond)
}

func TestMetricsPoller_RefreshWithCancelledContext(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var numCalls atomic.Int64
	args := createMockArgs()
	args.Source = &testsCommon.SourceStub{
		FetchAllMetricsHandler: func(ctx context.Context) (*common.MetricsPayload, error) {
			if numCalls.Add(1) == 1 {
				close(entered)
				<-release
			}
			return createPayload(1), nil
		},
	}
	mp, _ := NewMetricsPoller(args)

	go mp.RefreshNow(context.Background())
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	mp.RefreshNow(ctx)
	assert.Equal(t, int64(1), numCalls.Load(), "a refresh whose context expires while waiting must not fetch")

	close(release)
}

func TestMetricsPoller_HistoryAccessors(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(2 * time.Second)
	args := createMockArgs()
	args.Source = newCountingSource()
	args.TimeHandler = clock.Now
	mp, _ := NewMetricsPoller(args)

	preloaded := []common.Snapshot{
		createPayload(100).ToSnapshot(time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)),
	}
	mp.Preload(preloaded)
	assert.Equal(t, preloaded, mp.History())

	mp.RefreshNow(context.Background())
	mp.RefreshNow(context.Background())

	assert.Len(t, mp.History(), 3)
	window := mp.Window(2)
	require.Len(t, window, 2)
	assert.JSONEq(t, `{"usage_percent": 2}`, string(window[1].CPU))

	rates := mp.NetworkRates()
	require.Len(t, rates, 1)
	assert.Equal(t, common.NetworkRate{Interface: "eth0", BytesSentPerSec: 500, BytesRecvPerSec: 1000}, rates[0])

	var lastState common.MetricsState
	mp.Subscribe(func(state common.MetricsState) {
		lastState = state
	})
	mp.Subscribe(nil)

	mp.ClearHistory()
	assert.Empty(t, mp.History())
	assert.Empty(t, lastState.History)
	assert.NotNil(t, lastState.Payload, "clearing the history keeps the latest payload")
}
