package avindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/indexer"
	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/index"
	"github.com/meigma/avindex/source"
)

const (
	indexingTitle   = "Indexing"
	indexingMessage = "Creating cache... This can take a while!"

	// inexactPreroll is decoded ahead of a sync point when the index has no
	// hashes to verify the result against.
	inexactPreroll = 2

	// fillBatchUnits bounds the units held in memory by one FillBuffer
	// iteration.
	fillBatchUnits = 64

	// cancelPollInterval bounds how long a waiting Open takes to notice a
	// cancelled ProgressSink when the build reports no progress.
	cancelPollInterval = 50 * time.Millisecond
)

// Provider serves decoded samples (audio) or frames (video) of one track.
//
// A Provider is safe for concurrent use; reads are serialized.
type Provider struct {
	mu sync.Mutex

	file   *os.File
	src    *source.Source
	idx    *index.Index
	props  Properties
	layout sampleLayout
	format SampleFormat
	frame  int64
	out    int64

	hostCache bool
	closed    bool
}

// Open opens path, loads or builds its index and returns a Provider for the
// selected track.
//
// On a cache miss the index is built through the configured Executor, which
// receives a ProgressSink; cancelling ctx or the sink makes Open return
// ErrCancelled. Concurrent Opens of the same file share one build, which is
// stopped without writing a cache entry once all of them have cancelled.
// Every failure is returned as an *OpenError whose
// Op names the step that failed.
func Open(ctx context.Context, path string, cfg Config, opts ...Option) (*Provider, error) {
	oc := &openConfig{}
	for _, opt := range opts {
		opt(oc)
	}
	if oc.executor == nil {
		oc.executor = InlineExecutor()
	}
	if oc.build == nil {
		oc.build = indexer.Build
	}
	log := oc.log()

	f, id, err := avtype.OpenFile(path, cfg.ContentDigest)
	if err != nil {
		return nil, openError(path, "open", err)
	}
	p, err := open(ctx, f, id, cfg, oc)
	if err != nil {
		_ = f.Close()
		return nil, openError(id.Path, "index", err)
	}

	log.Debug("opened source",
		slog.String("path", id.Path),
		slog.String("format", p.props.Format),
		slog.String("track", p.props.Track.String()),
		slog.Int64("units", p.idx.Len()),
		slog.Bool("exact", p.idx.Exact()))
	return p, nil
}

func open(ctx context.Context, f *os.File, id avtype.SourceIdentity, cfg Config, oc *openConfig) (*Provider, error) {
	log := oc.log()
	bopts := indexer.Options{
		Track:          cfg.TrackSelector,
		ExactDuration:  cfg.ExactDuration,
		Threads:        cfg.Threads,
		SamplesPerUnit: cfg.SamplesPerUnit,
		Formats:        oc.formats,
		Codecs:         oc.codecs,
		Logger:         log,
	}
	key := cache.Key{
		Identity: id,
		Track:    trackKey(cfg),
		Stamp:    bopts.Stamp(),
	}
	store := cacheStore(cfg, oc)

	idx, err := loadOrBuild(ctx, key, bopts, store, oc)
	if err != nil {
		return nil, err
	}

	preroll := 0
	if !idx.Exact() {
		preroll = inexactPreroll
	}
	maxCache := cfg.MaxCacheSizeBytes
	if maxCache == 0 {
		maxCache = -1
	}
	src, err := source.Open(f, id.Size, idx, source.Options{
		MaxCacheBytes:  maxCache,
		Preroll:        preroll,
		SamplesPerUnit: cfg.SamplesPerUnit,
		Formats:        oc.formats,
		Codecs:         oc.codecs,
		Logger:         log,
	})
	if err != nil {
		return nil, &avtype.OpenError{Path: id.Path, Op: "open source", Err: err}
	}

	p := &Provider{
		file:      f,
		src:       src,
		idx:       idx,
		format:    cfg.OutputFormat,
		hostCache: cfg.HostCache,
	}
	p.initProperties()

	if store != nil {
		evict(ctx, store, cfg, log)
	}
	return p, nil
}

// cacheStore returns the injected store, the disk store configured by cfg,
// or nil when caching is disabled or unavailable.
func cacheStore(cfg Config, oc *openConfig) cache.Store {
	if oc.store != nil {
		return oc.store
	}
	if !cfg.EnableDiskCache {
		return nil
	}
	store, err := newDiskStore(cfg, oc)
	if err != nil {
		oc.log().Warn("index cache disabled", slog.String("error", err.Error()))
		return nil
	}
	return store
}

// loadOrBuild returns the cached index for key, building and saving it on
// a miss. Cache failures only cost a rebuild.
func loadOrBuild(ctx context.Context, key cache.Key, bopts indexer.Options, store cache.Store, oc *openConfig) (*index.Index, error) {
	log := oc.log()
	path := key.Identity.Path

	if store != nil {
		oc.emit(ProgressEvent{Stage: StageLoadingCache, Path: path})
		idx, err := store.Load(ctx, key)
		switch {
		case err == nil:
			log.Debug("index cache hit", slog.String("path", path))
			return idx, nil
		case errors.Is(err, cache.ErrStale):
			log.Debug("index cache stale", slog.String("path", path))
		case errors.Is(err, cache.ErrNotFound):
			log.Debug("index cache miss", slog.String("path", path))
		default:
			log.Warn("index cache load failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return build(ctx, key, bopts, store, oc)
}

// build waits, inside the executor, for the shared build of key. The
// caller's ctx and sink only decide how long this Open waits; the build
// itself stops once every waiting Open has given up.
func build(ctx context.Context, key cache.Key, bopts indexer.Options, store cache.Store, oc *openConfig) (*index.Index, error) {
	log := oc.log()
	path := key.Identity.Path
	flightKey := fmt.Sprintf("%s|%d|%d|%s|%s", key.Identity.Key(key.Track), key.Identity.Size, key.Identity.ModTime, key.Identity.Digest, key.Stamp)
	var idx *index.Index

	err := oc.executor.Run(ctx, indexingTitle, func(ctx context.Context, sink ProgressSink) error {
		sink.SetTitle(indexingTitle)
		sink.SetMessage(indexingMessage)
		sink.SetIndeterminate()
		if sink.IsCancelled() {
			return avtype.ErrCancelled
		}

		oc.emit(ProgressEvent{Stage: StageProbing, Path: path})
		w := newWatcher(sink, oc, path)
		fl, results, joined := builds.join(ctx, flightKey, w, func(fl *flight) (*index.Index, error) {
			return runBuild(fl, key, bopts, store, oc)
		})
		defer builds.leave(flightKey, fl, w)
		if joined {
			log.Debug("joined index build", slog.String("path", path), slog.Int("waiting", builds.waiting(path)))
		}

		tick := time.NewTicker(cancelPollInterval)
		defer tick.Stop()
		for {
			select {
			case res := <-results:
				if res.Err != nil {
					return res.Err
				}
				idx = res.Val.(*index.Index) //nolint:forcetypeassert // flights only return indexes
				return nil
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", avtype.ErrCancelled, ctx.Err())
			case <-w.quit:
				return avtype.ErrCancelled
			case <-tick.C:
				if sink.IsCancelled() {
					return avtype.ErrCancelled
				}
			}
		}
	})
	switch {
	case err == nil && idx == nil:
		return nil, fmt.Errorf("%w: executor returned without running the index build", avtype.ErrIndex)
	case errors.Is(err, context.Canceled) && !errors.Is(err, avtype.ErrCancelled):
		return nil, fmt.Errorf("%w: %w", avtype.ErrCancelled, err)
	case err != nil:
		return nil, err
	}
	return idx, nil
}

// runBuild indexes the file of key on its own handle, so the build outlives
// the Open that started it, and saves the result. A file that changed since
// it was identified fails the build.
func runBuild(fl *flight, key cache.Key, bopts indexer.Options, store cache.Store, oc *openConfig) (*index.Index, error) {
	ctx := fl.ctx
	log := oc.log()
	path := key.Identity.Path

	f, live, err := avtype.OpenFile(path, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if live.Size != key.Identity.Size || live.ModTime != key.Identity.ModTime {
		return nil, &avtype.OpenError{Path: path, Op: "open", Err: fmt.Errorf("%s changed while opening", path)}
	}

	idx, err := oc.build(ctx, f, live.Size, bopts, func(done, total int64) {
		builds.each(fl, func(w *watcher) { w.progress(done, total) })
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", avtype.ErrCancelled, err)
	case err != nil:
		return nil, err
	case idx == nil:
		return nil, fmt.Errorf("%w: indexer returned no index", avtype.ErrIndex)
	}
	if idx.Exact() {
		log.Debug("file cached and has exact samples", slog.String("path", path))
	}

	if store != nil && ctx.Err() == nil {
		builds.each(fl, func(w *watcher) {
			w.deliver(func() {
				w.oc.emit(ProgressEvent{Stage: StageSavingCache, Path: path, UnitsDone: idx.Len(), UnitsTotal: idx.Len()})
			})
		})
		if err := store.Save(ctx, key, idx); err != nil {
			log.Warn("index cache save failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return idx, nil
}

func evict(ctx context.Context, store cache.Store, cfg Config, log *slog.Logger) {
	stats, err := store.Evict(ctx, evictPolicy(cfg))
	if err != nil {
		log.Warn("index cache eviction failed", slog.String("error", err.Error()))
		return
	}
	if stats.Removed > 0 || stats.TempRemoved > 0 {
		log.Debug("index cache evicted",
			slog.Int("removed", stats.Removed),
			slog.Int("temp_removed", stats.TempRemoved),
			slog.Int64("freed_bytes", stats.FreedBytes),
			slog.Int64("remaining_bytes", stats.RemainingBytes))
	}
}

// openError wraps err as the single error Open returns. An OpenError from
// a lower layer keeps its step and gains the path.
func openError(path, op string, err error) error {
	var oe *avtype.OpenError
	if errors.As(err, &oe) {
		out := *oe
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return &avtype.OpenError{Path: path, Op: op, Err: err}
}

func (p *Provider) initProperties() {
	t := p.idx.Track()
	p.props = Properties{
		Format:   p.idx.Format(),
		Track:    t,
		Complete: p.idx.Complete(),
	}
	p.frame = int64(t.FrameSize())
	p.out = p.frame
	if t.Kind == avtype.KindVideo {
		p.props.Video = p.idx.Video()
	} else {
		p.props.Audio = p.idx.Audio()
		p.layout = sampleLayout{bytes: t.BytesPerSample, float: t.Float}
		p.out = int64(t.Channels * p.layout.outputBytes(p.format))
		switch p.format {
		case SampleFormatS16:
			p.props.Audio.BytesPerSample, p.props.Audio.Float = 2, false
		case SampleFormatF32:
			p.props.Audio.BytesPerSample, p.props.Audio.Float = 4, true
		}
	}
	if !p.hostCache {
		p.props.DecodedSamples = p.idx.NumSamples()
	}
}

// Properties returns what the provider serves. Audio sample layout reflects
// Config.OutputFormat.
func (p *Provider) Properties() Properties {
	return p.props
}

// NeedsCache reports whether the host should keep its own cache of decoded
// samples.
func (p *Provider) NeedsCache() bool {
	return p.hostCache
}

// Keyframes returns the position of every unit that starts at a container
// sync point, in order: frame numbers for video, sample positions for
// audio. Every raw video frame and PCM block is a sync point.
func (p *Provider) Keyframes() []int64 {
	var out []int64
	for u := range p.idx.Units() {
		if u.Key {
			out = append(out, u.PTS)
		}
	}
	return out
}

// FrameBytes returns the size of one sample frame (audio) or picture
// (video) written by FillBuffer.
func (p *Provider) FrameBytes() int {
	return int(p.out)
}

// FillBuffer writes count samples (audio) or frames (video) starting at
// start into buf. It either fills buf[:count*FrameBytes()] completely or
// fails with a *ReadError: ErrOutOfRange when the range exceeds the track,
// ErrShortBuffer when buf is too small.
func (p *Provider) FillBuffer(buf []byte, start, count int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &avtype.ReadError{Start: start, Count: count, Err: avtype.ErrClosed}
	}
	total := p.idx.NumSamples()
	if start < 0 || count < 0 || start > total || count > total-start {
		return &avtype.ReadError{Start: start, Count: count, Err: avtype.ErrOutOfRange}
	}
	if count == 0 {
		return nil
	}
	if int64(len(buf)) < count*p.out {
		return &avtype.ReadError{Start: start, Count: count, Err: fmt.Errorf("%w: need %d bytes, have %d", avtype.ErrShortBuffer, count*p.out, len(buf))}
	}

	end := start + count
	first, _ := p.idx.Locate(start)
	last, _ := p.idx.Locate(end - 1)
	for batch := first; batch <= last; batch += fillBatchUnits {
		n := min(fillBatchUnits, last-batch+1)
		units, err := p.src.Read(batch, n)
		if err != nil {
			return p.readError(start, count, err)
		}
		for i, data := range units {
			if err := p.copyUnit(buf, p.idx.Unit(batch+int64(i)), data, start, end); err != nil {
				return &avtype.ReadError{Start: start, Count: count, Err: err}
			}
		}
	}
	return nil
}

// copyUnit writes the part of u inside [start, end) into buf.
func (p *Provider) copyUnit(buf []byte, u avtype.Unit, data []byte, start, end int64) error {
	want := int64(u.Samples) * p.frame
	if int64(len(data)) != want {
		return fmt.Errorf("%w: unit %d decoded to %d bytes, want %d", avtype.ErrCorrupt, u.Index, len(data), want)
	}
	lo := max(start, u.PTS)
	hi := min(end, u.End())
	src := data[(lo-u.PTS)*p.frame : (hi-u.PTS)*p.frame]
	dst := buf[(lo-start)*p.out : (hi-start)*p.out]
	if p.props.Track.Kind == avtype.KindVideo {
		copy(dst, src)
		return nil
	}
	convertSamples(dst, src, p.layout, p.format)
	return nil
}

// readError restates a unit-range read failure in sample positions.
func (p *Provider) readError(start, count int64, err error) error {
	var re *avtype.ReadError
	if errors.As(err, &re) {
		return &avtype.ReadError{Start: start, Count: count, Err: re.Err}
	}
	return &avtype.ReadError{Start: start, Count: count, Err: err}
}

// Close releases the decoder and the file. It is safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.src.Close(), p.file.Close())
}
