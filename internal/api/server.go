package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"StockLens/internal/logging"
)

// Server wraps the gin router and its http.Server.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	logger *logging.Logger
}

// NewServer creates the API server listening on port.
func NewServer(port int, readTimeout, writeTimeout time.Duration, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger: logger,
	}
}

// SetupRoutes registers every endpoint.
func (s *Server) SetupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/metrics", h.Metrics)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/stocks", h.ListStocks)
		v1.POST("/data", h.GetData)
		v1.POST("/volume-groups", h.VolumeGroups)
		v1.GET("/snapshots/:ticker", h.GetSnapshot)
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background. A listen failure is logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("api server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("api server failed")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}

func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
