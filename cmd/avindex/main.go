// Command avindex inspects and reads media files through the avindex
// library, and manages its index cache.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/avindex"
)

var (
	v          = viper.New()
	cfg        avindex.Config
	logger     *slog.Logger
	cfgFile    string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "avindex",
	Short: "Exact random access to audio and raw video files",
	Long: `avindex builds a per-unit index of a media file once, caches it on disk,
and then serves sample-exact reads from it.

Settings are read from avindex.yaml in the home directory or the working
directory, from AVINDEX_* environment variables, and from flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		var err error
		cfg, err = avindex.ConfigFrom(viperReader{v: v})
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		var level slog.Level
		switch v.GetString("log_level") {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if v.GetString("log_format") == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)

		logger.Debug("configuration",
			"cache_dir", cfg.CacheDir,
			"disk_cache", cfg.EnableDiskCache,
			"track", cfg.TrackSelector,
			"exact", cfg.ExactDuration,
			"samples_per_unit", cfg.SamplesPerUnit,
			"output_format", cfg.OutputFormat.String())
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is avindex.yaml in $HOME or pwd)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.BoolVar(&noProgress, "no-progress", false, "disable the indexing progress bar")

	flags.Int("track", -1, "track number; negative selects the first audio track")
	flags.Bool("exact", true, "decode the whole file while indexing so sample counts are exact")
	flags.Int("samples-per-unit", 0, "PCM frames per index unit")
	flags.Int("threads", 0, "indexing threads (0 = GOMAXPROCS)")
	flags.String("cache-dir", "", "index cache directory")
	flags.Bool("disk-cache", true, "persist indexes in the cache directory")
	flags.String("format", "", "output sample format (native, s16, f32)")
	flags.Bool("digest", false, "include a sha256 of the file in its cache identity")

	rootCmd.AddCommand(infoCmd, readCmd, cacheCmd, benchCmd)
}
