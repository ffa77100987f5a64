package avindex

import (
	"context"
	"strconv"

	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/cache/disk"
	"github.com/meigma/avindex/internal/avtype"
)

// CacheStats reports the result of a cache pruning pass.
type CacheStats = cache.EvictStats

// CachePath returns where the disk cache keeps the index of path under cfg.
// The file is not opened and the entry may not exist.
func CachePath(path string, cfg Config, opts ...Option) (string, error) {
	oc := &openConfig{}
	for _, opt := range opts {
		opt(oc)
	}
	id, err := avtype.Identify(path, false)
	if err != nil {
		return "", err
	}
	store, err := newDiskStore(cfg, oc)
	if err != nil {
		return "", err
	}
	return store.PathFor(id, trackKey(cfg)), nil
}

// PruneCache evicts disk cache entries per cfg.MaxDiskCacheBytes and
// cfg.MaxDiskCacheAge. Open does this after every successful open.
func PruneCache(ctx context.Context, cfg Config, opts ...Option) (CacheStats, error) {
	oc := &openConfig{}
	for _, opt := range opts {
		opt(oc)
	}
	store, err := newDiskStore(cfg, oc)
	if err != nil {
		return CacheStats{}, err
	}
	return store.Evict(ctx, evictPolicy(cfg))
}

func newDiskStore(cfg Config, oc *openConfig) (*disk.Store, error) {
	dir, err := cfg.cacheDir()
	if err != nil {
		return nil, err
	}
	dopts := []disk.Option{disk.WithLogger(oc.log())}
	if oc.resolver != nil {
		dopts = append(dopts, disk.WithPathResolver(oc.resolver))
	}
	return disk.New(dir, dopts...)
}

func evictPolicy(cfg Config) cache.Policy {
	return cache.Policy{
		MaxBytes: cfg.MaxDiskCacheBytes,
		MaxAge:   cfg.MaxDiskCacheAge,
	}
}

// trackKey is the track part of a cache key.
func trackKey(cfg Config) string {
	return strconv.Itoa(cfg.TrackSelector)
}
