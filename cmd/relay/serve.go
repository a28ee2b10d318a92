package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-relay/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket relay, history API and gRPC health port",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			slog.Info("starting chat-relay",
				"env", cfg.Logging.Env, "version", cfg.Logging.Version,
				"http", cfg.HTTP.Addr, "grpc", cfg.GRPC.Addr, "store", cfg.Store.Driver)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := app.SetupTracing(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.WaitShutdown(shutdownTracing)

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Warn("close store", "err", err)
				}
			}()

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			slog.Info("stopped")
			return nil
		},
	}
}
