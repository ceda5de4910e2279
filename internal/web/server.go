// Package web serves the Switchboard status API: health, stats,
// fairness queue state, final outcomes, and job records.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zulandar/switchboard/internal/fairness"
	"github.com/zulandar/switchboard/internal/operator"
)

// StartOpts holds configuration for the status server.
type StartOpts struct {
	Operator *operator.Operator
	Fairness *fairness.Queue // optional; /queue returns 404 when unset
	DB       *gorm.DB        // optional; /jobs returns 404 when unset
	Addr     string
	Out      io.Writer
}

// Start launches the status HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Operator == nil {
		return fmt.Errorf("web: operator is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	router := newRouter(opts)

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Status server listening on %s\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// newRouter builds the Gin router with all status routes registered.
func newRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
