package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loanaudit/app"
)

// Options configures the HTTP API
type Options struct {
	Addr         string
	Mode         string // gin mode: release, debug or test
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DefaultSeed  int64
}

// Server exposes the audit service as a JSON API under /api/v1
type Server struct {
	router  *gin.Engine
	http    *http.Server
	handler *Handler
	logger  *zap.Logger
}

// NewServer creates the router and registers every route
func NewServer(svc *app.AuditService, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Named("http")))

	s := &Server{
		router:  router,
		handler: NewHandler(svc, opts.DefaultSeed),
		logger:  logger,
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/quality", s.handler.Quality)
		v1.POST("/clean", s.handler.Clean)
		v1.POST("/fairness", s.handler.Fairness)
		v1.POST("/simulate", s.handler.Simulate)
		v1.POST("/simulate/batch", s.handler.SimulateBatch)
		v1.POST("/pipeline", s.handler.Pipeline)

		v1.GET("/provenance", s.handler.ListProvenance)
		v1.POST("/provenance", s.handler.RecordLineage)

		v1.GET("/runs", s.handler.ListRuns)
		v1.GET("/runs/:id", s.handler.GetRun)
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
