package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/cli/config"
	controller "github.com/m-mizutani/tagship/pkg/controller/http"
	"github.com/m-mizutani/tagship/pkg/usecase"
	"github.com/m-mizutani/tagship/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds graceful shutdown, including in-flight runs
const shutdownTimeout = 10 * time.Minute

func cmdServe() *cli.Command {
	var (
		serverCfg  config.Server
		releaseCfg releaseConfig
	)

	flags := append(serverCfg.Flags(), releaseCfg.github.WebhookFlags()...)
	flags = append(flags, releaseCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving GitHub push webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting tagship server",
				slog.String("addr", serverCfg.Addr),
			)

			spec, err := releaseCfg.pipeline.Load()
			if err != nil {
				return err
			}

			releaseUC, cleanup, err := releaseCfg.build(ctx, spec)
			if err != nil {
				return err
			}
			defer cleanup()

			webhookUC := usecase.NewWebhook(releaseUC,
				usecase.WithRunTimeout(releaseCfg.execution.RunTimeout),
			)

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				webhookUC,
				releaseUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(releaseCfg.github.Secret()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "HTTP server error", goerr.V("addr", serverCfg.Addr))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-serverErr:
				return err
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Waiting for running releases to finish")
			if err := async.Wait(shutdownCtx); err != nil {
				return err
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
