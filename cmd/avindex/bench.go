package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/avindex"
)

type benchConfig struct {
	duration   time.Duration
	iterations int
	chunk      int64
	random     bool
	seed       int64
	pprofAddr  string
	cpuProfile string
	memProfile string
	traceFile  string
}

var bench benchConfig

type benchStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

var benchCmd = &cobra.Command{
	Use:   "bench FILE",
	Short: "Measure read throughput of an indexed file",
	Long: `Bench opens FILE (indexing it if needed) and then repeatedly reads chunks
of samples or frames, sequentially or at random positions, reporting the
throughput. CPU, heap and trace profiles can be written for analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bench.chunk <= 0 {
			return errors.New("chunk must be positive")
		}

		if bench.pprofAddr != "" {
			go func() {
				logger.Info("pprof listening", slog.String("addr", bench.pprofAddr))
				//nolint:gosec // intentional pprof server without timeouts for profiling
				if err := http.ListenAndServe(bench.pprofAddr, nil); err != nil {
					logger.Error("pprof server error", slog.String("error", err.Error()))
				}
			}()
		}

		p, err := avindex.Open(cmd.Context(), args[0], cfg, openOptions()...)
		if err != nil {
			return err
		}
		defer p.Close()

		stop, err := startProfiles(bench)
		if err != nil {
			return err
		}
		stats, err := runBench(cmd, p, bench)
		if stopErr := stop(); err == nil {
			err = stopErr
		}
		if err != nil {
			return err
		}

		if bench.memProfile != "" {
			runtime.GC()
			f, err := os.Create(bench.memProfile)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				return err
			}
		}

		mode := "sequential"
		if bench.random {
			mode = "random"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
			mode,
			stats.ops,
			stats.bytes,
			stats.elapsed,
			float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
		)
		return nil
	},
}

// startProfiles starts the CPU profile and execution trace requested by
// cfg and returns a function that stops them.
func startProfiles(cfg benchConfig) (func() error, error) {
	var stops []func() error
	stop := func() error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i]())
		}
		return errors.Join(errs...)
	}

	if cfg.cpuProfile != "" {
		cpuFile, err := os.Create(cfg.cpuProfile)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			_ = cpuFile.Close()
			return nil, err
		}
		stops = append(stops, func() error {
			pprof.StopCPUProfile()
			return cpuFile.Close()
		})
	}

	if cfg.traceFile != "" {
		traceFile, err := os.Create(cfg.traceFile)
		if err != nil {
			_ = stop()
			return nil, err
		}
		if err := trace.Start(traceFile); err != nil {
			_ = traceFile.Close()
			_ = stop()
			return nil, err
		}
		stops = append(stops, func() error {
			trace.Stop()
			return traceFile.Close()
		})
	}
	return stop, nil
}

func runBench(cmd *cobra.Command, p *avindex.Provider, cfg benchConfig) (benchStats, error) {
	props := p.Properties()
	total := props.Audio.NumSamples
	if props.Track.Kind == avindex.KindVideo {
		total = props.Video.NumFrames
	}
	chunk := min(cfg.chunk, total)
	if chunk <= 0 {
		return benchStats{}, errors.New("track is empty")
	}
	frame := int64(p.FrameBytes())
	buf := make([]byte, chunk*frame)
	rng := rand.New(rand.NewSource(cfg.seed)) //nolint:gosec // intentional for reproducible benchmarks

	start := time.Now()
	var stats benchStats
	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return stats.ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	var pos int64
	for shouldContinue() {
		if err := cmd.Context().Err(); err != nil {
			return benchStats{}, err
		}
		if cfg.random {
			pos = rng.Int63n(total - chunk + 1)
		} else if pos+chunk > total {
			pos = 0
		}
		if err := p.FillBuffer(buf, pos, chunk); err != nil {
			return benchStats{}, err
		}
		stats.bytes += chunk * frame
		stats.ops++
		pos += chunk
	}
	stats.elapsed = time.Since(start)
	return stats, nil
}

func init() {
	flags := benchCmd.Flags()
	flags.DurationVar(&bench.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flags.IntVar(&bench.iterations, "iterations", 0, "number of reads to run")
	flags.Int64Var(&bench.chunk, "chunk", 4096, "samples or frames per read")
	flags.BoolVar(&bench.random, "random", true, "read at random positions")
	flags.Int64Var(&bench.seed, "seed", 1, "random seed")
	flags.StringVar(&bench.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flags.StringVar(&bench.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flags.StringVar(&bench.memProfile, "memprofile", "", "write heap profile to file")
	flags.StringVar(&bench.traceFile, "trace", "", "write trace to file")
}
