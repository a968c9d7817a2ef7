// Package server exposes the escalation store and posting pipeline as a
// local JSON API for UI clients.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/handoff/internal/pipeline"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB       *gorm.DB
	Pipeline *pipeline.Coordinator
	Port     int
	Out      io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Pipeline == nil {
		return fmt.Errorf("server: pipeline is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8077
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts.DB, opts.Pipeline)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter builds the gin router with all routes registered.
func newRouter(db *gorm.DB, coord *pipeline.Coordinator) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, db, coord)
	return router
}
