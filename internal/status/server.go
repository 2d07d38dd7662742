package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/vi-monitor/internal/connection"
	"github.com/rickgao/vi-monitor/internal/dispatcher"
	"github.com/rickgao/vi-monitor/internal/registry"
	"github.com/rickgao/vi-monitor/internal/scheduler"
	"github.com/rickgao/vi-monitor/internal/writer"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ConnectionStatus reports the stream connection.
type ConnectionStatus interface {
	Status() connection.Status
}

// Instruments lists active subscription records.
type Instruments interface {
	Active() []registry.Record
	Len() int
}

// Cancellations lists armed deferred unsubscribes.
type Cancellations interface {
	Pending() []scheduler.Pending
	Len() int
}

// Deps are the components the server reports on. Dispatcher, Journal,
// Session and Gatherer are optional.
type Deps struct {
	Connection    ConnectionStatus
	Instruments   Instruments
	Cancellations Cancellations
	Dispatcher    interface{ Stats() dispatcher.Stats }
	Journal       interface{ Stats() writer.Stats }
	Session       *MarketSession
	Gatherer      prometheus.Gatherer
}

// Server is the HTTP status server.
type Server struct {
	addr   string
	deps   Deps
	engine *gin.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Server listening on addr.
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		addr:   addr,
		deps:   deps,
		engine: engine,
		logger: logger.With("component", "status"),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/instruments", s.handleInstruments)
	s.engine.GET("/cancellations", s.handleCancellations)
	if s.deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	conn := s.deps.Connection.Status()

	health := gin.H{
		"status":                StatusHealthy,
		"connection":            conn,
		"active_instruments":    s.deps.Instruments.Len(),
		"pending_cancellations": s.deps.Cancellations.Len(),
	}
	if s.deps.Session != nil {
		health["market"] = s.deps.Session.At(s.now())
	}
	if s.deps.Dispatcher != nil {
		health["dispatcher"] = s.deps.Dispatcher.Stats()
	}
	if s.deps.Journal != nil {
		health["journal"] = s.deps.Journal.Stats()
	}

	code := http.StatusOK
	if conn.State != connection.StateConnected.String() {
		health["status"] = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (s *Server) handleInstruments(c *gin.Context) {
	active := s.deps.Instruments.Active()
	c.JSON(http.StatusOK, gin.H{
		"count":       len(active),
		"instruments": active,
	})
}

func (s *Server) handleCancellations(c *gin.Context) {
	pending := s.deps.Cancellations.Pending()
	c.JSON(http.StatusOK, gin.H{
		"count":         len(pending),
		"cancellations": pending,
	})
}
