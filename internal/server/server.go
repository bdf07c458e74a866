// Package server exposes the validator and scheduler over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/joshharrison/taskflow/internal/reporter"
	"github.com/joshharrison/taskflow/internal/workflow"
)

const maxBodySize = 4 << 20 // 4MB

// Server is the taskflow HTTP API.
type Server struct {
	loader *workflow.Loader
	log    logr.Logger
	router *gin.Engine

	mu    sync.RWMutex
	graph *reporter.Graph // last graph posted to /api/graph
}

// New creates a server. The loader decodes request bodies; its Path is
// ignored because requests carry the workflow at the top level.
func New(loader workflow.Loader, log logr.Logger) *Server {
	loader.Path = ""
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		loader: &loader,
		log:    log,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/dependencies/validate", s.handleValidateDependency)
		api.POST("/workflows/validate", s.handleValidateWorkflow)
		api.POST("/workflows/schedule", s.handleSchedule)
		api.POST("/workflows/critical-path", s.handleCriticalPath)
		api.POST("/graph", s.handlePostGraph)
		api.GET("/graph", s.handleGetGraph)
	}

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func requestLogger(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.V(1).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
