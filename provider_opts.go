package avindex

import (
	"log/slog"

	"github.com/meigma/avindex/indexer"
	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
)

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	executor Executor
	logger   *slog.Logger
	store    CacheStore
	resolver CachePathResolver
	build    indexer.BuildFunc
	progress ProgressFunc

	formats []demux.Format
	codecs  codec.Registry
}

// WithExecutor sets the executor that runs the index build.
// Defaults to InlineExecutor.
func WithExecutor(e Executor) Option {
	return func(c *openConfig) {
		c.executor = e
	}
}

// WithLogger sets the logger for provider, indexer, source and cache
// diagnostics. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		c.logger = logger
	}
}

// WithCacheStore replaces the disk cache configured by Config.
//
// The store is used even when Config.EnableDiskCache is false.
func WithCacheStore(store CacheStore) Option {
	return func(c *openConfig) {
		c.store = store
	}
}

// WithCachePathResolver overrides where the disk cache stores the entry
// for a file. Entries outside the cache directory are not evicted.
func WithCachePathResolver(fn CachePathResolver) Option {
	return func(c *openConfig) {
		c.resolver = fn
	}
}

// WithIndexer replaces the index builder. Defaults to indexer.Build.
func WithIndexer(fn indexer.BuildFunc) Option {
	return func(c *openConfig) {
		c.build = fn
	}
}

// WithProgress sets a callback for progress updates during Open.
func WithProgress(fn ProgressFunc) Option {
	return func(c *openConfig) {
		c.progress = fn
	}
}

// withFormats overrides the probed container formats.
func withFormats(formats ...demux.Format) Option {
	return func(c *openConfig) {
		c.formats = formats
	}
}

// withCodecs overrides the decoder registry.
func withCodecs(codecs codec.Registry) Option {
	return func(c *openConfig) {
		c.codecs = codecs
	}
}

func (c *openConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *openConfig) emit(ev ProgressEvent) {
	if c.progress != nil {
		c.progress(ev)
	}
}
