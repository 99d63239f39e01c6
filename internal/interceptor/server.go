package interceptor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// Hook and probe routes.
const (
	routeInterceptRequest  = "/intercept/request"
	routeInterceptResponse = "/intercept/response"
	routeHealthz           = "/healthz"
	routeReadyz            = "/readyz"
	routeMetrics           = "/metrics"
)

const readyCheckTimeout = 2 * time.Second

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server serves the hook endpoints over HTTP.
type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	service     *Service
	logger      observability.Logger
	metrics     *Metrics
	config      config.ServerConfig
	readyChecks []ReadyCheck
	mu          sync.Mutex
	running     bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerMetrics sets the metrics recorder.
func WithServerMetrics(metrics *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithReadyChecks adds dependency probes to the readiness endpoint.
func WithReadyChecks(checks ...ReadyCheck) ServerOption {
	return func(s *Server) {
		s.readyChecks = append(s.readyChecks, checks...)
	}
}

// NewServer builds the gin engine with the middleware chain and hook
// routes wired to service.
func NewServer(cfg config.ServerConfig, service *Service, opts ...ServerOption) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:  gin.New(),
		service: service,
		logger:  observability.NopLogger(),
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.MaxBodyBytes > 0 {
		s.engine.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodyBytes)
			c.Next()
		})
	}
	s.engine.Use(
		RequestID(),
		Logging(s.logger),
		Tracing("toolgate"),
		HTTPMetrics(s.metrics),
		Recovery(s.logger, s.metrics),
	)

	s.registerRoutes()
	return s
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.POST(routeInterceptRequest, s.handleInterceptRequest)
	s.engine.POST(routeInterceptResponse, s.handleInterceptResponse)
	s.engine.GET(routeHealthz, s.handleHealthz)
	s.engine.GET(routeReadyz, s.handleReadyz)
	s.engine.GET(routeMetrics, gin.WrapH(promhttp.Handler()))
}

// handleInterceptRequest serves the inbound hook. A payload that does not
// decode is denied; the HTTP status is 200 either way, the gateway reads
// the hook output, not the status.
func (s *Server) handleInterceptRequest(c *gin.Context) {
	var payload HookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.metrics.RecordHook(hookRequest, outcomeMalformed)
		s.logger.Warn("undecodable request hook payload, denying",
			observability.String("requestID", GetRequestID(c)),
			observability.Error(err))
		c.JSON(http.StatusOK, denyRequest(nil))
		return
	}

	c.JSON(http.StatusOK, s.service.InterceptRequest(c.Request.Context(), &payload))
}

// handleInterceptResponse serves the outbound hook. A payload that does
// not decode comes back as an empty tool listing.
func (s *Server) handleInterceptResponse(c *gin.Context) {
	var payload HookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.metrics.RecordHook(hookResponse, outcomeMalformed)
		s.logger.Warn("undecodable response hook payload, emptying listing",
			observability.String("requestID", GetRequestID(c)),
			observability.Error(err))
		c.JSON(http.StatusOK, transformResponse(nil, emptyListing))
		return
	}

	c.JSON(http.StatusOK, s.service.InterceptResponse(c.Request.Context(), &payload))
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleReadyz probes the registered dependencies. Any failure reports
// the service as unavailable.
func (s *Server) handleReadyz(c *gin.Context) {
	results := make(map[string]string, len(s.readyChecks))
	status := "ok"
	statusCode := http.StatusOK

	for _, check := range s.readyChecks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			results[check.Name] = err.Error()
			status = "unavailable"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"checks":    results,
		"timestamp": time.Now().UTC(),
	})
}

// Start runs the HTTP server until it is stopped or fails. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout.Duration(),
		WriteTimeout: s.config.WriteTimeout.Duration(),
		IdleTimeout:  s.config.IdleTimeout.Duration(),
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.ListenAddr),
		observability.Duration("readTimeout", s.config.ReadTimeout.Duration()),
		observability.Duration("writeTimeout", s.config.WriteTimeout.Duration()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
