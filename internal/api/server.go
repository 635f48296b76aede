package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/advisor"
	"entsoeflow/internal/metrics"
	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/planner"
)

// Service is what the HTTP surface needs from the advisor.
type Service interface {
	Location() *time.Location
	Frame() planner.Frame
	Options() planner.Options
	ThresholdPct() int
	DayAhead(ctx context.Context, day time.Time, zone string) (advisor.Prices, error)
	CheapestBasic(ctx context.Context, day time.Time, zone string, n int, consecutive bool) (models.CheapestHours, error)
	CheapestAdvanced(ctx context.Context, day time.Time, zone string, opts planner.Options, thresholdPct int) (planner.Advanced, error)
	Plan(ctx context.Context, day time.Time, zone string) (models.AutomationPlan, error)
}

// Server hosts the home automation API.
type Server struct {
	config     *appconfig.Config
	service    Service
	keyLoaded  func() bool
	hub        *Hub
	log        *logger.Log
	httpServer *http.Server

	logs          *logStore
	events        *eventStore
	metricHandler metrics.MetricHandlerID
	sampler       *hostSampler
}

// NewServer returns nil when the server is disabled. keyLoaded reports
// whether an ENTSO-E key is configured; hub may be nil.
func NewServer(cfg *appconfig.Config, service Service, keyLoaded func() bool, hub *Hub) (*Server, error) {
	if !cfg.Server.Enabled {
		return nil, nil
	}
	if service == nil {
		return nil, errors.New("api: service is required")
	}
	if keyLoaded == nil {
		keyLoaded = func() bool { return false }
	}

	log := logger.GetLogger()
	history := cfg.Server.History
	if history <= 0 {
		history = 200
	}

	s := &Server{
		config:    cfg,
		service:   service,
		keyLoaded: keyLoaded,
		hub:       hub,
		log:       log,
		logs:      newLogStore(history),
		events:    newEventStore(history),
		sampler:   newHostSampler(history, cfg.Server.SampleInterval, cfg.Archive.Root, log),
	}
	s.metricHandler = metrics.RegisterMetricHandler(s.events.handle)
	log.AddHook(s.logs)
	return s, nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	s.sampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.Router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.log.WithComponent("api").WithFields(logger.Fields{
		"address":   s.httpServer.Addr,
		"time_zone": s.config.App.TimeZone,
	}).Info("starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if s.hub != nil {
			s.hub.Close()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	s.logs.close()
	s.sampler.stop()
}

// Address is host:port, with empty or wildcard hosts bound to all
// interfaces.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	host := strings.TrimSpace(s.config.Server.Host)
	if host == "" || host == "*" {
		host = "0.0.0.0"
	}
	port := s.config.Server.Port
	if port <= 0 {
		port = 8000
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.accessLog())
	_ = router.SetTrustedProxies(nil)

	router.GET("/", s.handleRoot)
	router.GET("/system/health", s.handleHealth)
	router.GET("/system/logs", s.handleLogs)
	router.GET("/system/events", s.handleEvents)
	router.GET("/system/resources", s.handleResources)

	energy := router.Group("/energy")
	energy.GET("/prices/dayahead", s.handleDayAhead)
	energy.GET("/prices/cheapest-basic", s.handleCheapestBasic)
	energy.GET("/prices/cheapest-advanced", s.handleCheapestAdvanced)
	energy.GET("/plan", s.handlePlan)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.hub != nil {
		router.GET("/ws", s.hub.Serve)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, s.now(), models.NewNotFound("Route "+c.Request.URL.Path+" not found", nil))
	})
	return router
}

func (s *Server) now() time.Time {
	return s.service.Frame().Now
}
