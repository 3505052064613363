package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting sercha-rag",
				zap.String("version", Version),
				zap.String("database", cfg.Database.Driver),
				zap.Int("port", cfg.Server.Port),
			)

			app, err := buildApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Warn("error during shutdown", zap.Error(err))
				}
			}()

			if err := app.server.Start(ctx); err != nil {
				return err
			}
			log.Info("sercha-rag stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

