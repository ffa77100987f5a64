package avindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/source"
)

// Default configuration values.
const (
	DefaultMaxCacheSizeBytes int64 = source.DefaultMaxCacheBytes
	DefaultMaxDiskCacheBytes int64 = 1 << 30 // 1 GB
	DefaultMaxDiskCacheAge         = 30 * 24 * time.Hour
)

// Configuration keys read by ConfigFrom.
const (
	KeyMaxCacheSize     = "max_cache_size_mb"
	KeyEnableDiskCache  = "enable_disk_cache"
	KeyTrack            = "track"
	KeyExactDuration    = "exact_duration"
	KeySamplesPerUnit   = "samples_per_unit"
	KeyThreads          = "threads"
	KeyCacheDir         = "cache_dir"
	KeyMaxDiskCacheSize = "max_disk_cache_mb"
	KeyMaxDiskCacheAge  = "max_disk_cache_age"
	KeyHostCache        = "host_cache"
	KeyContentDigest    = "content_digest"
	KeyOutputFormat     = "output_format"
)

// SampleFormat selects the layout FillBuffer writes audio samples in.
type SampleFormat uint8

const (
	// SampleFormatNative writes samples as the decoder produces them.
	SampleFormatNative SampleFormat = iota

	// SampleFormatS16 writes interleaved signed 16-bit little-endian samples.
	SampleFormatS16

	// SampleFormatF32 writes interleaved 32-bit little-endian floats.
	SampleFormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatNative:
		return "native"
	case SampleFormatS16:
		return "s16"
	case SampleFormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// ParseSampleFormat parses the names returned by SampleFormat.String.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return SampleFormatNative, nil
	case "s16":
		return SampleFormatS16, nil
	case "f32":
		return SampleFormatF32, nil
	default:
		return 0, fmt.Errorf("unknown sample format %q", s)
	}
}

// Config holds the host-facing settings of a Provider.
type Config struct {
	// MaxCacheSizeBytes bounds the decoded units kept in memory. Zero
	// disables the in-memory cache.
	MaxCacheSizeBytes int64

	// EnableDiskCache persists indexes under CacheDir.
	EnableDiskCache bool

	// TrackSelector picks the track by number. Negative selects the first
	// audio track.
	TrackSelector int

	// ExactDuration decodes the whole file while indexing so sample counts
	// are exact for formats without exact container timing.
	ExactDuration bool

	// SamplesPerUnit groups raw PCM frames into units.
	SamplesPerUnit int

	// Threads bounds indexing parallelism. Zero uses GOMAXPROCS.
	Threads int

	// CacheDir is the index cache directory. Empty uses DefaultCacheDir.
	CacheDir string

	// MaxDiskCacheBytes and MaxDiskCacheAge bound the index cache after
	// each successful open. Zero disables the respective limit.
	MaxDiskCacheBytes int64
	MaxDiskCacheAge   time.Duration

	// HostCache reports that the host keeps its own decoded-sample cache.
	HostCache bool

	// ContentDigest includes a sha256 of the file in its identity.
	ContentDigest bool

	// OutputFormat selects the sample layout written by FillBuffer.
	OutputFormat SampleFormat
}

// DefaultConfig returns the configuration used when the host sets nothing.
func DefaultConfig() Config {
	return Config{
		MaxCacheSizeBytes: DefaultMaxCacheSizeBytes,
		EnableDiskCache:   true,
		TrackSelector:     -1,
		ExactDuration:     true,
		SamplesPerUnit:    demux.DefaultSamplesPerUnit,
		MaxDiskCacheBytes: DefaultMaxDiskCacheBytes,
		MaxDiskCacheAge:   DefaultMaxDiskCacheAge,
	}
}

// ConfigReader reads host option values. Each method returns def when the
// key is unset.
type ConfigReader interface {
	Int(key string, def int) int
	Bool(key string, def bool) bool
	String(key string, def string) string
	Duration(key string, def time.Duration) time.Duration
}

// ConfigFrom builds a Config from host options, starting from
// DefaultConfig. Sizes are read in megabytes.
func ConfigFrom(r ConfigReader) (Config, error) {
	cfg := DefaultConfig()
	cfg.MaxCacheSizeBytes = int64(r.Int(KeyMaxCacheSize, int(cfg.MaxCacheSizeBytes>>20))) << 20
	cfg.EnableDiskCache = r.Bool(KeyEnableDiskCache, cfg.EnableDiskCache)
	cfg.TrackSelector = r.Int(KeyTrack, cfg.TrackSelector)
	cfg.ExactDuration = r.Bool(KeyExactDuration, cfg.ExactDuration)
	cfg.SamplesPerUnit = r.Int(KeySamplesPerUnit, cfg.SamplesPerUnit)
	cfg.Threads = r.Int(KeyThreads, cfg.Threads)
	cfg.CacheDir = r.String(KeyCacheDir, cfg.CacheDir)
	cfg.MaxDiskCacheBytes = int64(r.Int(KeyMaxDiskCacheSize, int(cfg.MaxDiskCacheBytes>>20))) << 20
	cfg.MaxDiskCacheAge = r.Duration(KeyMaxDiskCacheAge, cfg.MaxDiskCacheAge)
	cfg.HostCache = r.Bool(KeyHostCache, cfg.HostCache)
	cfg.ContentDigest = r.Bool(KeyContentDigest, cfg.ContentDigest)

	format, err := ParseSampleFormat(r.String(KeyOutputFormat, cfg.OutputFormat.String()))
	if err != nil {
		return Config{}, err
	}
	cfg.OutputFormat = format

	if cfg.MaxCacheSizeBytes < 0 || cfg.MaxDiskCacheBytes < 0 {
		return Config{}, fmt.Errorf("cache sizes must not be negative")
	}
	if cfg.SamplesPerUnit <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", KeySamplesPerUnit, cfg.SamplesPerUnit)
	}
	return cfg, nil
}

// DefaultCacheDir returns the per-user index cache directory.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "avindex"), nil
}

func (c Config) cacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	return DefaultCacheDir()
}
