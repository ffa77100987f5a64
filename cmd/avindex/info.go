package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meigma/avindex"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE...",
	Short: "Index files and print their track properties",
	Long: `Info opens each file, building and caching its index if needed, and
prints the properties of the selected track.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			p, err := avindex.Open(cmd.Context(), path, cfg, openOptions()...)
			if err != nil {
				return err
			}
			printProperties(cmd.OutOrStdout(), path, p)
			if err := p.Close(); err != nil {
				return err
			}
		}
		return nil
	},
}

func openOptions() []avindex.Option {
	return []avindex.Option{
		avindex.WithExecutor(newExecutor()),
		avindex.WithLogger(logger),
	}
}

func printProperties(w io.Writer, path string, p *avindex.Provider) {
	props := p.Properties()
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  format:    %s\n", props.Format)
	fmt.Fprintf(w, "  track:     %s\n", props.Track)
	if props.Track.Kind == avindex.KindVideo {
		vp := props.Video
		fmt.Fprintf(w, "  frames:    %d\n", vp.NumFrames)
		fmt.Fprintf(w, "  units:     %d\n", vp.NumUnits)
		fmt.Fprintf(w, "  exact:     %t\n", vp.Exact)
	} else {
		ap := props.Audio
		fmt.Fprintf(w, "  samples:   %d\n", ap.NumSamples)
		if ap.SampleRate > 0 {
			fmt.Fprintf(w, "  duration:  %.3fs\n", float64(ap.NumSamples)/float64(ap.SampleRate))
		}
		fmt.Fprintf(w, "  output:    %d ch, %d bytes/sample, float=%t\n", ap.Channels, ap.BytesPerSample, ap.Float)
		fmt.Fprintf(w, "  units:     %d\n", ap.NumUnits)
		fmt.Fprintf(w, "  exact:     %t\n", ap.Exact)
	}
	fmt.Fprintf(w, "  complete:  %t\n", props.Complete)
}
