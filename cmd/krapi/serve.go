package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/app"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicializa el control plane, corre el janitor y expone /healthz, /readyz y /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Named("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := app.New(ctx, cfg, app.Options{Logger: logger.L(), Version: version})
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("shutdown cleanup failed", logger.Err(err))
				}
			}()

			if err := c.Store.EnsureReady(ctx); err != nil {
				return err
			}
			if cfg.DefaultAdmin.Password != "" {
				if err := c.Services.Admins.CreateDefaultAdmin(ctx); err != nil {
					return err
				}
			}

			go c.Janitor.Run(ctx)

			srv := &http.Server{
				Addr:              cfg.Ops.Addr,
				Handler:           c.Ops,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      30 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("ops server listening", zap.String("addr", cfg.Ops.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
