package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaki95/timeline-editor/internal/audio"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/export"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the saved timeline to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		formatName := exportFormat
		if formatName == "" {
			formatName = cfg.Editor.DefaultExportFormat
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		transcoder, err := audio.NewFFmpegTranscoder(ffmpegOptions(cfg, logger))
		if err != nil {
			return err
		}
		defer transcoder.Close()

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Rendering %s[reset]", format)),
		)

		path, err := renderTimeline(ctx, export.New(export.Options{
			Transcoder: transcoder,
			Content:    a.catalog,
			Logger:     logger,
		}), a.engine.Tracks(), format, exportOut, bar)
		bar.Finish()
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "output format: mp4, webm, mp3 or wav")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory (default: generated name in the working directory)")
	rootCmd.AddCommand(exportCmd)
}

// progressSink receives whole render percentages.
type progressSink interface {
	Set(num int) error
}

// renderTimeline exports tracks and writes the result to out. A directory or
// empty out keeps the generated file name.
func renderTimeline(ctx context.Context, o *export.Orchestrator, tracks []domain.Track, format export.Format, out string, bar progressSink) (string, error) {
	result, err := o.Export(ctx, tracks, export.Request{Format: format}, func(pct int) {
		bar.Set(pct)
	})
	if err != nil {
		return "", err
	}

	path := out
	if path == "" {
		path = result.FileName
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, result.FileName)
	}

	if err := os.WriteFile(path, result.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
