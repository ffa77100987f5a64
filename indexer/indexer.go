// Package indexer builds unit indexes by reading a media file once.
//
// Formats whose container timing is exact (PCM WAV, raw Y4M) are indexed from
// packet headers alone. Other formats are decoded packet by packet when exact
// durations are requested: the decoder's sample count places each unit and
// a hash of the decoded payload lets readers verify that a seek reproduced
// the same output.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/index"
)

// ProgressFunc receives the number of units indexed and the estimated total.
// Zero total means the total is unknown.
type ProgressFunc func(done, total int64)

// BuildFunc is the signature of Build, for callers that substitute their own
// indexer.
type BuildFunc func(ctx context.Context, r io.ReaderAt, size int64, opts Options, progress ProgressFunc) (*index.Index, error)

var _ BuildFunc = Build

type mode int

const (
	// modeContainer trusts container timing.
	modeContainer mode = iota
	// modeDecode decodes every packet.
	modeDecode
	// modeHeaders records container timing that is not authoritative.
	modeHeaders
)

func (m mode) String() string {
	switch m {
	case modeContainer:
		return "container"
	case modeDecode:
		return "decode"
	default:
		return "headers"
	}
}

// Build indexes the selected track of the media file read through r.
//
// The context is checked between packets; cancellation returns an error
// wrapping avtype.ErrCancelled. Corrupt data ends the index at the last good
// unit and marks it incomplete. A build that produces no unit fails with an
// *avtype.IndexError.
func Build(ctx context.Context, r io.ReaderAt, size int64, opts Options, progress ProgressFunc) (*index.Index, error) {
	log := opts.log()
	start := time.Now()

	dmx, err := demux.Probe(r, size, demux.Options{SamplesPerUnit: opts.SamplesPerUnit}, opts.Formats...)
	if err != nil {
		return nil, &avtype.OpenError{Op: "probe", Err: err}
	}
	streamIdx, stream, err := selectStream(dmx.Streams(), opts.Track)
	if err != nil {
		return nil, &avtype.OpenError{Op: "select track", Err: err}
	}
	dec, err := opts.codecs().New(stream)
	if err != nil {
		return nil, &avtype.OpenError{Op: "open decoder", Err: err}
	}
	defer dec.Close()

	m := modeHeaders
	switch {
	case stream.ExactTiming:
		m = modeContainer
	case opts.ExactDuration:
		m = modeDecode
	}

	track := dec.Track()
	track.ID = streamIdx
	b := &build{
		opts:     opts,
		log:      log,
		mode:     m,
		dmx:      dmx,
		dec:      dec,
		stream:   streamIdx,
		frame:    int64(track.FrameSize()),
		builder:  index.NewBuilder(dmx.Format(), track, opts.Stamp()),
		progress: newThrottle(progress, opts.progressInterval(), stream.EstimatedPackets),
		hashes:   newHasher(opts.threads()),
		window:   dec.Warmup(),
	}
	log.Debug("indexing",
		slog.String("format", dmx.Format()),
		slog.String("track", track.String()),
		slog.String("mode", m.String()))

	if err := b.run(ctx); err != nil {
		return nil, err
	}

	idx := b.builder.Freeze()
	if idx.Len() == 0 {
		cause := b.stopErr
		if cause == nil {
			cause = errors.New("stream has no packets")
		}
		return nil, &avtype.IndexError{Unit: 0, Err: cause}
	}
	b.progress.done(idx.Len())
	log.Debug("index built",
		slog.String("format", idx.Format()),
		slog.Int64("units", idx.Len()),
		slog.Int64("samples", idx.NumSamples()),
		slog.Bool("exact", idx.Exact()),
		slog.Bool("complete", idx.Complete()),
		slog.Duration("elapsed", time.Since(start)))
	return idx, nil
}

func selectStream(streams []demux.Stream, want int) (int, demux.Stream, error) {
	if want < 0 {
		for i, s := range streams {
			if s.Kind == avtype.KindAudio {
				return i, s, nil
			}
		}
		return 0, demux.Stream{}, fmt.Errorf("%w: no audio track", avtype.ErrNoTrack)
	}
	if want >= len(streams) {
		return 0, demux.Stream{}, fmt.Errorf("%w: track %d of %d", avtype.ErrNoTrack, want, len(streams))
	}
	return want, streams[want], nil
}

type build struct {
	opts     Options
	log      *slog.Logger
	mode     mode
	dmx      demux.Demuxer
	dec      codec.Decoder
	stream   int
	frame    int64
	builder  *index.Builder
	progress *throttle
	hashes   *hasher

	// window is how many earlier units a unit's decode depends on through
	// decoder warmup.
	window int
	// needs holds, for the most recent units, the first unit whose bytes
	// each references.
	needs []int64

	pos     int64
	stopErr error
}

func (b *build) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", avtype.ErrCancelled, err)
		}
		pkt, err := b.dmx.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, avtype.ErrCorrupt) {
				b.truncate(err)
				break
			}
			return &avtype.IndexError{Unit: b.builder.Len(), Err: err}
		}
		if pkt.Stream != b.stream {
			continue
		}
		ok, err := b.add(ctx, pkt)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		b.progress.report(b.builder.Len())
	}
	return b.hashes.flush(ctx, b.builder)
}

// add appends the unit for pkt. It returns false when the build must stop
// at this packet.
func (b *build) add(ctx context.Context, pkt demux.Packet) (bool, error) {
	i := b.builder.Len()
	u := avtype.Unit{
		PTS:     b.pos,
		Offset:  pkt.Offset,
		Size:    uint32(len(pkt.Data)),
		Samples: uint32(pkt.Samples),
		Key:     pkt.Key,
		Sync:    b.sync(i, pkt.Preroll),
	}
	var out []byte
	switch b.mode {
	case modeContainer:
		u.Exact = true
	case modeDecode:
		var err error
		out, err = b.dec.Decode(pkt)
		if err != nil {
			if errors.Is(err, avtype.ErrCorrupt) {
				b.truncate(err)
				return false, nil
			}
			return false, &avtype.IndexError{Unit: i, Err: err}
		}
		decoded := int64(len(out)) / b.frame
		if drift := decoded - pkt.Samples; drift > b.opts.Tolerance || -drift > b.opts.Tolerance {
			b.log.Debug("decoder and container disagree",
				slog.Int64("unit", i),
				slog.Int64("container", pkt.Samples),
				slog.Int64("decoded", decoded))
		}
		u.Samples = uint32(decoded)
		u.Exact = true
	}

	b.builder.Append(u)
	b.pos += int64(u.Samples)
	if out != nil {
		return true, b.hashes.add(ctx, b.builder, i, out)
	}
	return true, nil
}

// sync returns the first unit decoding has to start at to reproduce unit i.
// The unit references preroll earlier packets, and the decoder needs window
// earlier units to be exact as well, each with their own preroll.
func (b *build) sync(i int64, preroll int) int64 {
	need := max(i-int64(preroll), 0)
	b.needs = append(b.needs, need)
	if len(b.needs) > b.window+1 {
		b.needs = b.needs[len(b.needs)-b.window-1:]
	}
	s := need
	for _, n := range b.needs {
		s = min(s, n)
	}
	return s
}

func (b *build) truncate(err error) {
	b.log.Warn("truncating index at corrupt data",
		slog.Int64("units", b.builder.Len()),
		slog.String("error", err.Error()))
	b.builder.Truncated()
	b.stopErr = err
}

// hasher hashes decoded units in parallel batches.
type hasher struct {
	threads int
	items   []hashItem
}

type hashItem struct {
	unit int64
	data []byte
	sum  uint64
}

func newHasher(threads int) *hasher {
	return &hasher{threads: threads}
}

func (h *hasher) add(ctx context.Context, b *index.Builder, unit int64, data []byte) error {
	h.items = append(h.items, hashItem{unit: unit, data: data})
	if len(h.items) < h.threads*hashBatchPerThread {
		return nil
	}
	return h.flush(ctx, b)
}

func (h *hasher) flush(ctx context.Context, b *index.Builder) error {
	if len(h.items) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.threads)
	for i := range h.items {
		item := &h.items[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", avtype.ErrCancelled, err)
			}
			item.sum = xxhash.Sum64(item.data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, item := range h.items {
		b.SetHash(item.unit, item.sum)
	}
	h.items = h.items[:0]
	return nil
}

// throttle rate-limits progress callbacks.
type throttle struct {
	fn       ProgressFunc
	interval time.Duration
	total    int64
	last     time.Time
}

func newThrottle(fn ProgressFunc, interval time.Duration, total int64) *throttle {
	return &throttle{fn: fn, interval: interval, total: total, last: time.Now()}
}

func (t *throttle) report(done int64) {
	if t.fn == nil {
		return
	}
	now := time.Now()
	if now.Sub(t.last) < t.interval {
		return
	}
	t.last = now
	t.fn(done, max(t.total, done))
}

func (t *throttle) done(n int64) {
	if t.fn != nil {
		t.fn(n, n)
	}
}
