package server

import (
	"bytes"
	"context"
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/chart"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/config"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout = 5 * time.Second
	maxRenderSize   = 4096

	SlotDistribution = "distribution"
	SlotCounter      = "counter"
)

//go:embed web/index.html
var indexHTML []byte

// StatusSource reports device connection state.
type StatusSource interface {
	Status() []device.EndpointStatus
}

type errResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server is the dashboard: the browser page, a JSON API over the chart
// registry, PNG renders, the live update socket and Prometheus metrics.
type Server struct {
	cfg      config.ServerConfig
	registry *registry.Registry
	hub      *Hub
	status   StatusSource
	logger   logger.Logger
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.logger = log
	}
}

func New(cfg config.ServerConfig, reg *registry.Registry, hub *Hub, status StatusSource, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		registry: reg,
		hub:      hub,
		status:   status,
		logger:   logger.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleIndex)
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.GET("/devices", s.handleDevices)
	api.GET("/devices/:id", s.handleDevice)
	api.GET("/devices/:id/charts/:slot", s.handleChartPNG)
	api.GET("/endpoints", s.handleEndpoints)

	s.engine = r

	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Msg("Dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return errFactory.Wrap(errors.ErrServeHTTP, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	s.logger.Info().Msg("Dashboard stopped")

	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleDevices(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Snapshots())
}

func (s *Server) handleDevice(c *gin.Context) {
	dev, ok := s.registry.Get(c.Param("id"))
	if !ok {
		notFound(c, "unknown device "+c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, dev.Snapshot())
}

func (s *Server) handleChartPNG(c *gin.Context) {
	dev, ok := s.registry.Get(c.Param("id"))
	if !ok {
		notFound(c, "unknown device "+c.Param("id"))
		return
	}

	var snap chart.Snapshot
	switch c.Param("slot") {
	case SlotDistribution:
		snap = dev.Distribution.Snapshot()
	case SlotCounter:
		snap = dev.Counter.Snapshot()
	default:
		notFound(c, "unknown chart "+c.Param("slot"))
		return
	}

	width := sizeParam(c, "width", s.cfg.RenderWidth)
	height := sizeParam(c, "height", s.cfg.RenderHeight)

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, snap, width, height); err != nil {
		if errors.Is(err, chart.ErrNothingToRender) {
			c.Status(http.StatusNoContent)
			return
		}
		s.logger.Warn().Err(err).Str("device_id", dev.ID).Str("slot", c.Param("slot")).Msg("Failed to render chart")
		c.JSON(http.StatusInternalServerError, errResponse{Error: errors.CodeOf(err).String(), Message: err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleEndpoints(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, []device.EndpointStatus{})
		return
	}

	c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request, s.registry.Snapshots)
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, errResponse{Error: string(errors.ErrNotFound), Message: msg})
}

// sizeParam reads an optional pixel size, falling back to def for missing
// or out of range values.
func sizeParam(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 || v > maxRenderSize {
		return def
	}

	return v
}
