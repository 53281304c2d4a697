package factory

import (
	"context"
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/api"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/config"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/lifecycle"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/poller"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/source"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/storage"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

const probeTimeout = 5 * time.Second

var log = logger.GetOrCreate("factory")

type componentsHandler struct {
	source           HealthChecker
	metricsPoller    MetricsPoller
	systemInfoPoller SystemInfoPoller
	controller       Controller
	store            SnapshotArchive
	server           Server

	mutState sync.Mutex
	started  bool
	closed   bool
}

// NewComponentsHandler creates and wires every component of the dashboard service
func NewComponentsHandler(
	serviceKeyApi string,
	cfg config.Config,
) (*componentsHandler, error) {
	cfg.ApplyDefaults()

	src, err := source.NewHTTPSource(source.ArgsHTTPSource{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}

	metricsPoller, err := poller.NewMetricsPoller(poller.ArgsMetricsPoller{
		Source:                 src,
		Interval:               cfg.MetricsInterval(),
		MaxHistory:             cfg.MaxHistory,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	})
	if err != nil {
		return nil, err
	}

	systemInfoPoller, err := poller.NewSystemInfoPoller(poller.ArgsSystemInfoPoller{
		Source:                 src,
		Interval:               cfg.SystemInfoInterval(),
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	})
	if err != nil {
		return nil, err
	}

	store, err := createSnapshotArchive(cfg, metricsPoller)
	if err != nil {
		return nil, err
	}

	controller, err := lifecycle.NewController(lifecycle.ArgsController{
		MetricsPoller:    metricsPoller,
		SystemInfoPoller: systemInfoPoller,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	var archive api.SnapshotArchive
	if !check.IfNil(store) {
		archive = store
	}

	server, err := api.NewServer(api.ArgsWebServer{
		ServiceKeyApi:    serviceKeyApi,
		ListenAddress:    cfg.ListenAddress,
		MetricsPoller:    metricsPoller,
		SystemInfoPoller: systemInfoPoller,
		Controller:       controller,
		Archive:          archive,
		GeneralHandler:   api.CORSMiddleware,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	metricsPoller.Subscribe(server.BroadcastMetricsState)
	systemInfoPoller.Subscribe(server.BroadcastSystemInfoState)

	stateLogger := newStateLogger(cfg.Name)
	metricsPoller.Subscribe(stateLogger.logMetricsState)
	systemInfoPoller.Subscribe(stateLogger.logSystemInfoState)

	return &componentsHandler{
		source:           src,
		metricsPoller:    metricsPoller,
		systemInfoPoller: systemInfoPoller,
		controller:       controller,
		store:            store,
		server:           server,
	}, nil
}

// createSnapshotArchive opens the archive, preloads the metrics history from it and subscribes the recorder.
// Returns nil if the archive is disabled.
func createSnapshotArchive(cfg config.Config, metricsPoller MetricsPoller) (SnapshotArchive, error) {
	if len(cfg.Storage.Path) == 0 {
		log.Debug("snapshot archive disabled")
		return nil, nil
	}

	store, err := storage.NewSQLiteStorage(storage.ArgsSQLiteStorage{
		Path:               cfg.Storage.Path,
		MaxStoredSnapshots: cfg.Storage.MaxStoredSnapshots,
		RetentionSeconds:   cfg.Storage.RetentionSeconds,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	snapshots, err := store.GetSnapshots(ctx, cfg.MaxHistory)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	metricsPoller.Preload(snapshots)

	lastSaved := time.Time{}
	if len(snapshots) > 0 {
		lastSaved = snapshots[len(snapshots)-1].Timestamp
	}

	recorder, err := storage.NewSnapshotRecorder(store, lastSaved)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	metricsPoller.Subscribe(recorder.HandleMetricsState)

	log.Info("snapshot archive opened", "path", cfg.Storage.Path, "restored snapshots", len(snapshots))

	return store, nil
}

func closeStore(store SnapshotArchive) {
	if check.IfNil(store) {
		return
	}

	err := store.Close()
	if err != nil {
		log.Warn("failed to close the snapshot archive", "error", err)
	}
}

// GetMetricsPoller returns the metrics poller
func (ch *componentsHandler) GetMetricsPoller() MetricsPoller {
	return ch.metricsPoller
}

// GetSystemInfoPoller returns the system info poller
func (ch *componentsHandler) GetSystemInfoPoller() SystemInfoPoller {
	return ch.systemInfoPoller
}

// GetController returns the lifecycle controller
func (ch *componentsHandler) GetController() Controller {
	return ch.controller
}

// GetStore returns the snapshot archive, nil if disabled
func (ch *componentsHandler) GetStore() SnapshotArchive {
	return ch.store
}

// GetServer returns the server component
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start probes the backend, starts the view server and mounts the view. An unreachable backend is not fatal,
// the pollers keep retrying.
func (ch *componentsHandler) Start() {
	ch.mutState.Lock()
	defer ch.mutState.Unlock()

	if ch.started || ch.closed {
		return
	}
	ch.started = true

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	err := ch.source.Health(ctx)
	cancel()
	if err != nil {
		log.Warn("metrics backend is not reachable, polling will keep retrying", "error", err)
	}

	ch.server.Start()
	ch.controller.Mount()
}

// Close stops the pollers and closes the inner components. The handler cannot be restarted afterwards.
func (ch *componentsHandler) Close() {
	ch.mutState.Lock()
	defer ch.mutState.Unlock()

	if ch.closed {
		return
	}
	ch.closed = true

	ch.controller.Unmount()

	err := ch.server.Close()
	if err != nil {
		log.Warn("failed to close the server", "error", err)
	}

	closeStore(ch.store)
}
