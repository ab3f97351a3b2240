package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the saved tracks, clips and media files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()

		return printTimeline(cmd.OutOrStdout(), a.engine.Snapshot(), a.catalog)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printTimeline(out io.Writer, tl domain.Timeline, files *catalog.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Duration: %.2fs\n\n", tl.Duration)
	for _, track := range tl.Tracks {
		fmt.Fprintf(w, "%s (%s, volume %d%%%s)\n", track.Name, track.Kind, track.Volume, trackFlags(track))
		if len(track.Clips) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		fmt.Fprintln(w, "  CLIP\tFILE\tSTART\tEND\tTRIM\tVOLUME")
		for _, c := range track.Clips {
			name := c.FileID
			if f, ok := files.Get(c.FileID); ok {
				name = f.Name
			}
			fmt.Fprintf(w, "  %s\t%s\t%.2f\t%.2f\t%.2f/%.2f\t%d%%%s\n",
				c.ID, name, c.StartTime, c.End(), c.TrimStart, c.TrimEnd, c.Volume, clipFlags(c))
		}
	}

	media := files.List()
	fmt.Fprintf(w, "\nMedia (%d)\n", len(media))
	if len(media) > 0 {
		fmt.Fprintln(w, "  ID\tNAME\tTYPE\tDURATION\tSIZE")
		for _, f := range media {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%.2fs\t%d\n", f.ID, f.Name, f.Kind, f.Duration, f.Size)
		}
	}
	return w.Flush()
}

func trackFlags(t domain.Track) string {
	var flags []string
	if t.Muted {
		flags = append(flags, "muted")
	}
	if t.Locked {
		flags = append(flags, "locked")
	}
	if len(flags) == 0 {
		return ""
	}
	return ", " + strings.Join(flags, ", ")
}

func clipFlags(c domain.Clip) string {
	switch {
	case c.Muted:
		return " muted"
	case !c.HasAudio:
		return " no-audio"
	}
	return ""
}
