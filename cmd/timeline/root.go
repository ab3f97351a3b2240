package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jaki95/timeline-editor/config"
	"github.com/jaki95/timeline-editor/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
	closeLog   func() error
)

var rootCmd = &cobra.Command{
	Use:           "timeline",
	Short:         "Timeline editor: edit clips on tracks, preview and export",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg = loaded
		_, closeLog = logging.Setup(cfg)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "path to the YAML config file")
}

// loadConfig reads path. A missing default file falls back to built-in
// defaults; a missing file passed explicitly is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	loaded, err := config.Load(path)
	if err == nil {
		return loaded, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file, using defaults", "path", path)
		return config.Default(), nil
	}
	return nil, fmt.Errorf("failed to load config %s: %w", path, err)
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
