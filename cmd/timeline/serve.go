package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/timeline-editor/internal/server"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if servePort != "" {
			cfg.Server.Port = servePort
		}
		if slog.Level(cfg.LogLevel) > slog.LevelDebug {
			gin.SetMode(gin.ReleaseMode)
		}

		logger := slog.Default()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(cfg, server.Deps{
			Engine:  a.engine,
			Catalog: a.catalog,
			Jobs:    a.jobs,
			Logger:  logger,
		})

		logger.Info("Starting timeline editor API server", "port", cfg.Server.Port,
			"records", cfg.Storage.Records.Type, "media", cfg.Storage.Media.Type)
		if err := srv.Start(ctx, cfg.Server.Port); err != nil {
			return err
		}
		logger.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
