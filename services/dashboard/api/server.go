package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

const (
	apiKeyHeader     = "X-Api-Key"
	apiKeyQueryParam = "key"
	shutdownTimeout  = 5 * time.Second
	refreshTimeout   = 30 * time.Second
)

var log = logger.GetOrCreate("api")

type server struct {
	router           *gin.Engine
	httpServer       *http.Server
	serviceKey       string
	listenAddr       string
	metricsPoller    MetricsPoller
	systemInfoPoller SystemInfoPoller
	controller       Controller
	archive          SnapshotArchive
	hub              *hub
	generalHandler   func(http.Handler) http.Handler
	wg               sync.WaitGroup
}

// ArgsWebServer defines the web server arguments. Archive is optional.
type ArgsWebServer struct {
	ServiceKeyApi    string
	ListenAddress    string
	MetricsPoller    MetricsPoller
	SystemInfoPoller SystemInfoPoller
	Controller       Controller
	Archive          SnapshotArchive
	GeneralHandler   func(http.Handler) http.Handler
}

// controlState is the view facing summary of the lifecycle signals
type controlState struct {
	Paused  bool `json:"paused"`
	Visible bool `json:"visible"`
}

// metricsResponse is the latest metrics poller state without the history
type metricsResponse struct {
	common.PollerState
	Payload       *common.MetricsPayload `json:"payload,omitempty"`
	Paused        bool                   `json:"paused"`
	HistoryLength int                    `json:"historyLength"`
}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if len(args.ServiceKeyApi) == 0 {
		return nil, ErrEmptyServiceKey
	}
	if check.IfNil(args.MetricsPoller) {
		return nil, ErrNilMetricsPoller
	}
	if check.IfNil(args.SystemInfoPoller) {
		return nil, ErrNilSystemInfoPoller
	}
	if check.IfNil(args.Controller) {
		return nil, ErrNilController
	}
	if args.GeneralHandler == nil {
		return nil, ErrNilHTTPHandler
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())

	s := &server{
		router:           router,
		serviceKey:       args.ServiceKeyApi,
		listenAddr:       args.ListenAddress,
		metricsPoller:    args.MetricsPoller,
		systemInfoPoller: args.SystemInfoPoller,
		controller:       args.Controller,
		archive:          args.Archive,
		hub:              newHub(),
		generalHandler:   args.GeneralHandler,
	}

	s.setupRoutes()
	return s, nil
}

func (s *server) setupRoutes() {
	api := s.router.Group("/api")

	api.GET("/health", s.handleHealth)

	protected := api.Group("/")
	protected.Use(s.authAPIKey())
	{
		protected.GET("/metrics", s.handleGetMetrics)
		protected.GET("/metrics/history", s.handleGetHistory)
		protected.DELETE("/metrics/history", s.handleClearHistory)
		protected.GET("/metrics/rates", s.handleGetRates)
		protected.GET("/system", s.handleGetSystemInfo)

		protected.GET("/control", s.handleGetControl)
		protected.POST("/control/pause", s.handlePause)
		protected.POST("/control/resume", s.handleResume)
		protected.POST("/control/toggle", s.handleToggle)
		protected.POST("/control/refresh", s.handleRefresh)
		protected.POST("/control/visibility", s.handleVisibility)

		protected.GET("/ws", s.handleWebSocket)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "api route not found"})
	})
}

// Start listens and serves connections
func (s *server) Start() {
	handler := s.generalHandler(s.router)

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: handler,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		log.Error("failed to listen", "error", err)
		return
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("starting HTTP server", "address", s.listenAddr)

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()
}

// Address returns the actual listen address
func (s *server) Address() string {
	return s.listenAddr
}

// BroadcastMetricsState pushes a metrics poller state to every websocket client
func (s *server) BroadcastMetricsState(state common.MetricsState) {
	s.hub.broadcast(kindMetrics, state)
}

// BroadcastSystemInfoState pushes a system info poller state to every websocket client
func (s *server) BroadcastSystemInfoState(state common.SystemInfoState) {
	s.hub.broadcast(kindSystemInfo, state)
}

// NumWebSocketClients returns the number of connected websocket clients
func (s *server) NumWebSocketClients() int {
	return s.hub.numClients()
}

// Close gracefully stops the server and drops the websocket clients
func (s *server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.hub.close()
	s.wg.Wait()

	return err
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *server) IsInterfaceNil() bool {
	return s == nil
}

// --- Middlewares ---

// authAPIKey accepts the key from the header or, for browser websockets that cannot set headers, from the query
func (s *server) authAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if len(key) == 0 {
			key = c.Query(apiKeyQueryParam)
		}
		if key != s.serviceKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// --- Handlers ---

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) handleGetMetrics(c *gin.Context) {
	state := s.metricsPoller.State()

	c.JSON(http.StatusOK, metricsResponse{
		PollerState:   state.PollerState,
		Payload:       state.Payload,
		Paused:        s.controller.IsPaused(),
		HistoryLength: len(state.History),
	})
}

func (s *server) handleGetHistory(c *gin.Context) {
	windowParam := c.Query("window")
	if len(windowParam) == 0 {
		c.JSON(http.StatusOK, gin.H{"history": s.metricsPoller.State().History})
		return
	}

	window, err := strconv.Atoi(windowParam)
	if err != nil || window < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": s.metricsPoller.Window(window)})
}

func (s *server) handleClearHistory(c *gin.Context) {
	s.metricsPoller.ClearHistory()

	if !check.IfNil(s.archive) {
		err := s.archive.DeleteAll(c.Request.Context())
		if err != nil {
			log.Warn("failed to clear the snapshot archive", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleGetRates(c *gin.Context) {
	rates := s.metricsPoller.NetworkRates()
	if rates == nil {
		rates = make([]common.NetworkRate, 0)
	}

	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

func (s *server) handleGetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.systemInfoPoller.State())
}

func (s *server) handleGetControl(c *gin.Context) {
	c.JSON(http.StatusOK, s.controlState())
}

func (s *server) handlePause(c *gin.Context) {
	s.applyControl(clientMessage{Type: "pause"})
	c.JSON(http.StatusOK, s.controlState())
}

func (s *server) handleResume(c *gin.Context) {
	s.applyControl(clientMessage{Type: "resume"})
	c.JSON(http.StatusOK, s.controlState())
}

func (s *server) handleToggle(c *gin.Context) {
	s.applyControl(clientMessage{Type: "toggle"})
	c.JSON(http.StatusOK, s.controlState())
}

func (s *server) handleRefresh(c *gin.Context) {
	s.refresh(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleVisibility(c *gin.Context) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Visible == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	s.applyControl(clientMessage{Type: "visibility", Visible: req.Visible})
	c.JSON(http.StatusOK, s.controlState())
}

func (s *server) handleWebSocket(c *gin.Context) {
	initial := []wsMessage{
		{Kind: kindControl, State: s.controlState()},
		{Kind: kindMetrics, State: s.metricsPoller.State()},
		{Kind: kindSystemInfo, State: s.systemInfoPoller.State()},
	}

	s.hub.serve(c.Writer, c.Request, initial, s.handleClientMessage)
}

func (s *server) handleClientMessage(msg clientMessage) {
	if msg.Type == "refresh" {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		s.refresh(ctx)
		return
	}

	s.applyControl(msg)
}

// applyControl forwards a lifecycle signal to the controller and tells every view about the outcome
func (s *server) applyControl(msg clientMessage) {
	switch msg.Type {
	case "pause":
		s.controller.SetPaused(true)
	case "resume":
		s.controller.SetPaused(false)
	case "toggle":
		s.controller.TogglePause()
	case "visibility":
		if msg.Visible == nil {
			return
		}
		s.controller.SetVisibility(*msg.Visible)
	default:
		log.Debug("unknown control signal", "type", msg.Type)
		return
	}

	s.hub.broadcast(kindControl, s.controlState())
}

// refresh runs an out-of-band fetch on both pollers in parallel and returns once both committed
func (s *server) refresh(ctx context.Context) {
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.metricsPoller.RefreshNow(ctx)
	}()
	go func() {
		defer wg.Done()
		s.systemInfoPoller.RefreshNow(ctx)
	}()
	wg.Wait()
}

func (s *server) controlState() controlState {
	return controlState{
		Paused:  s.controller.IsPaused(),
		Visible: s.controller.IsVisible(),
	}
}
