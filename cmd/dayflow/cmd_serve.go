package main

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/dayflow/internal/adapters/http/api"
	"github.com/okian/dayflow/internal/adapters/http/swagger"
	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts from a stored model over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				c.cfg.Addr, _ = cmd.Flags().GetString("addr")
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := c.service(cmd, store)
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			go startSystemMetricsUpdater(ctx)

			mux := http.NewServeMux()
			swagger.Register(ctx, mux)
			api.NewServer(svc, svc).Register(ctx, mux)

			srv := &http.Server{
				Addr:              c.cfg.Addr,
				Handler:           mux,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}
			return serve(ctx, srv, c.log)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address (default from config)")
	addServiceFlags(cmd)
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
