package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/example/resource-scheduler/internal/http"
)

func newServeCommand(c *cli) *cobra.Command {
	var allowAnonymous bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !allowAnonymous {
				if err := c.cfg.RequireAdminToken(); err != nil {
					return fmt.Errorf("%w (create one with `scheduler hash-token`)", err)
				}
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					c.logger.Error("failed to close storage", "error", cerr)
				}
			}()

			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", c.cfg.HTTPPort))
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}
			return c.serve(ctx, listener, a)
		},
	}
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "start without an admin token; every route is open")
	return cmd
}

// serve runs the API on listener until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (c *cli) serve(ctx context.Context, listener net.Listener, a *app) error {
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Availability:   httptransport.NewAvailabilityHandler(a.availability, c.logger),
		Capabilities:   httptransport.NewCapabilityHandler(a.capabilities, c.logger),
		Projects:       httptransport.NewProjectHandler(a.planning, a.capabilities, c.logger),
		Metrics:        a.metrics,
		AdminTokenHash: c.cfg.AdminTokenHash,
		HealthCheck:    a.storage.Ping,
		RequestTimeout: 30 * time.Second,
		Logger:         c.logger,
	})

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("scheduler API listening", "addr", listener.Addr().String(), "segment", c.cfg.SegmentDuration)
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server encountered error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	c.logger.Info("shutting down", "timeout", c.cfg.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}
