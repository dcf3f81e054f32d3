// Package http serves the worker's operational endpoints: health,
// readiness, the list of scheduled jobs, manual job runs, and calendar
// reloads. It is not an API for term data.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/redis"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler"
	"github.com/campusnote/termcycle/internal/interface/http/handlers"
	"github.com/campusnote/termcycle/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to listen on (default: ":8080").
	Addr string

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	// Manual job runs answer only when the job is done, so this is generous.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// JobRunner is the part of the scheduler the endpoints use.
type JobRunner interface {
	ListJobs() []scheduler.JobInfo
	GetJobInfo(name string) (*scheduler.JobInfo, error)
	RunNow(ctx context.Context, name string) (*scheduler.JobResult, error)
	EnableJob(name string) error
	DisableJob(name string) error
}

// CalendarReloader re-reads the academic calendar.
type CalendarReloader interface {
	Reload(ctx context.Context) (calendar.Snapshot, error)
	LoadedAt() (time.Time, bool)
}

// RunHistory reads recorded job runs.
type RunHistory interface {
	Last(ctx context.Context, job string) (*redis.RunRecord, error)
	History(ctx context.Context, job string, limit int) ([]redis.RunRecord, error)
}

// Dependencies contains everything the handlers need.
// Calendar and Ledger are optional.
type Dependencies struct {
	Jobs     JobRunner
	Calendar CalendarReloader
	Ledger   RunHistory
	Health   *handlers.CompositeHealthChecker
	Logger   *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if deps.Health == nil {
		deps.Health = handlers.NewCompositeHealthChecker("")
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger.OrNop(deps.Logger).With("component", "http"),
	}

	s.engine = gin.New()
	s.engine.Use(requestID(), s.recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/readyz", s.handleReady)

	jobs := s.engine.Group("/jobs")
	{
		jobs.GET("", s.handleListJobs)
		jobs.POST("/:name/run", s.handleRunJob)
		jobs.POST("/:name/enable", s.handleEnableJob)
		jobs.POST("/:name/disable", s.handleDisableJob)
		jobs.GET("/:name/last", s.handleLastRun)
		jobs.GET("/:name/history", s.handleHistory)
	}

	s.engine.POST("/calendar/reload", s.handleCalendarReload)
}

// Handler returns the router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http server starting", "addr", s.config.Addr)

	err := s.httpServer.ListenAndServe()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartAsync starts the server in a goroutine and returns a channel
// that receives the error it stopped with.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is listening.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
