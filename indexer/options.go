package indexer

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
)

const (
	// DefaultProgressInterval is the minimum time between progress
	// callbacks.
	DefaultProgressInterval = 100 * time.Millisecond

	// DefaultTolerance is the number of samples container and decoder may
	// disagree on per unit before the drift is logged. The decoder count is
	// used either way.
	DefaultTolerance = 0

	// hashBatchPerThread is how many decoded units each hashing worker gets
	// per batch.
	hashBatchPerThread = 16
)

// Options configures an index build.
type Options struct {
	// Track selects the track by number. Negative selects the first audio
	// track.
	Track int

	// ExactDuration decodes formats without exact container timing so that
	// every unit's sample count is confirmed.
	ExactDuration bool

	// Threads bounds parallel hashing of decoded units. Zero uses
	// GOMAXPROCS.
	Threads int

	// SamplesPerUnit groups raw sample frames into units.
	SamplesPerUnit int

	// ProgressInterval is the minimum time between progress callbacks.
	// Zero uses DefaultProgressInterval; negative reports every unit.
	ProgressInterval time.Duration

	// Tolerance is the per-unit container/decoder disagreement, in samples,
	// that is accepted without logging.
	Tolerance int64

	// Formats overrides the container formats to probe.
	Formats []demux.Format

	// Codecs overrides the decoder registry.
	Codecs codec.Registry

	// Logger receives build diagnostics.
	Logger *slog.Logger
}

// Stamp returns the options fingerprint stored with an index. An index
// built with a different stamp is stale.
func (o Options) Stamp() string {
	spu := o.SamplesPerUnit
	if spu <= 0 {
		spu = demux.DefaultSamplesPerUnit
	}
	return fmt.Sprintf("track=%d exact=%t spu=%d", o.Track, o.ExactDuration, spu)
}

func (o Options) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) threads() int {
	if o.Threads > 0 {
		return o.Threads
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) progressInterval() time.Duration {
	switch {
	case o.ProgressInterval < 0:
		return 0
	case o.ProgressInterval == 0:
		return DefaultProgressInterval
	default:
		return o.ProgressInterval
	}
}

func (o Options) codecs() codec.Registry {
	if o.Codecs != nil {
		return o.Codecs
	}
	return codec.DefaultRegistry()
}
