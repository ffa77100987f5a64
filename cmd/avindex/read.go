package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/avindex"
)

const readChunk = 1 << 16

var (
	readStart  int64
	readCount  int64
	readOutput string
)

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Write decoded samples or frames to a file or stdout",
	Long: `Read decodes COUNT samples (audio) or frames (video) starting at START and
writes them as raw interleaved data. A negative count reads to the end of the
track.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := avindex.Open(cmd.Context(), args[0], cfg, openOptions()...)
		if err != nil {
			return err
		}
		defer p.Close()

		props := p.Properties()
		total := props.Audio.NumSamples
		if props.Track.Kind == avindex.KindVideo {
			total = props.Video.NumFrames
		}
		count := readCount
		if count < 0 {
			count = max(total-readStart, 0)
		}

		var out io.Writer = cmd.OutOrStdout()
		if readOutput != "" && readOutput != "-" {
			f, err := os.Create(readOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		w := bufio.NewWriter(out)

		frame := int64(p.FrameBytes())
		buf := make([]byte, min(count, readChunk)*frame)
		for pos := readStart; pos < readStart+count; {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			n := min(readChunk, readStart+count-pos)
			if err := p.FillBuffer(buf, pos, n); err != nil {
				return err
			}
			if _, err := w.Write(buf[:n*frame]); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			pos += n
		}
		return w.Flush()
	},
}

func init() {
	readCmd.Flags().Int64Var(&readStart, "start", 0, "first sample or frame")
	readCmd.Flags().Int64Var(&readCount, "count", -1, "number of samples or frames (-1 = to the end)")
	readCmd.Flags().StringVarP(&readOutput, "output", "o", "-", "output file (- = stdout)")
}
