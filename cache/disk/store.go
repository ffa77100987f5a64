// Package disk provides a disk-backed index cache store.
//
// Entries live at <dir>/<shard>/<key>.avi where key is the hex digest of
// the source path and track selector. Writes go to a temporary file in the
// shard directory and are renamed into place, so readers in other processes
// never observe a partial entry.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/index"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700

	entryExt   = ".avi"
	tempPrefix = ".tmp-"
)

// PathResolver maps a source identity and track selector to an entry path.
type PathResolver func(id avtype.SourceIdentity, track string) string

// Store implements cache.Store using the local filesystem.
type Store struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	resolve        PathResolver
	logger         *slog.Logger
}

var _ cache.Store = (*Store)(nil)

// Option configures a disk store.
type Option func(*Store)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(s *Store) {
		s.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithPathResolver overrides where entries are stored. Paths outside the
// store directory are not seen by eviction.
func WithPathResolver(fn PathResolver) Option {
	return func(s *Store) {
		s.resolve = fn
	}
}

// WithLogger sets the logger for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a disk-backed store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the entry path for a source and track selector.
func (s *Store) PathFor(id avtype.SourceIdentity, track string) string {
	if s.resolve != nil {
		return s.resolve(id, track)
	}
	hexKey := id.Key(track).Encoded()
	if s.shardPrefixLen <= 0 {
		return filepath.Join(s.dir, hexKey+entryExt)
	}
	prefixLen := min(s.shardPrefixLen, len(hexKey))
	return filepath.Join(s.dir, hexKey[:prefixLen], hexKey+entryExt)
}

// Load reads the entry for key. Unreadable or undecodable entries are
// logged, removed and reported as cache.ErrNotFound.
func (s *Store) Load(ctx context.Context, key cache.Key) (*index.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.PathFor(key.Identity, key.Track)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the key digest
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log().Warn("cache read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil, cache.ErrNotFound
	}

	entry, err := index.Unmarshal(data)
	if err != nil {
		s.log().Warn("discarding unreadable cache entry", slog.String("path", path), slog.String("error", err.Error()))
		s.remove(path)
		return nil, cache.ErrNotFound
	}
	if !entry.Identity.Matches(key.Identity) {
		s.log().Debug("cache entry is stale",
			slog.String("path", path),
			slog.Int64("size", entry.Identity.Size),
			slog.Int64("live_size", key.Identity.Size))
		s.remove(path)
		return nil, cache.ErrStale
	}
	if entry.Index.Options() != key.Stamp {
		s.log().Debug("cache entry built with other options",
			slog.String("path", path),
			slog.String("stamp", entry.Index.Options()),
			slog.String("want", key.Stamp))
		s.remove(path)
		return nil, cache.ErrStale
	}

	// Load hits refresh the mtime that eviction orders by.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		s.log().Debug("cache touch failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return entry.Index, nil
}

// Save writes idx for key through a temporary file and rename. A cancelled
// context discards the temporary file.
func (s *Store) Save(ctx context.Context, key cache.Key, idx *index.Index) error {
	if idx.Options() != key.Stamp {
		return fmt.Errorf("cache: index stamp %q does not match key stamp %q", idx.Options(), key.Stamp)
	}
	data, err := index.Marshal(key.Identity, idx)
	if err != nil {
		return err
	}

	path := s.PathFor(key.Identity, key.Track)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	s.log().Debug("cache entry saved", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

// Size returns the total size of files in the store directory.
func (s *Store) Size() (int64, error) {
	return dirSize(s.dir)
}

// Evict removes abandoned temporary files, entries older than
// policy.MaxAge and then least recently used entries until the store is at
// or below policy.MaxBytes.
func (s *Store) Evict(ctx context.Context, policy cache.Policy) (cache.EvictStats, error) {
	ttl := policy.TempTTL
	if ttl <= 0 {
		ttl = cache.DefaultTempTTL
	}
	stats, err := pruneDir(ctx, s.dir, pruneRules{
		maxBytes: policy.MaxBytes,
		maxAge:   policy.MaxAge,
		tempTTL:  ttl,
		now:      time.Now(),
	})
	if err != nil {
		return stats, err
	}
	if stats.Removed > 0 || stats.TempRemoved > 0 {
		s.log().Debug("cache evicted",
			slog.Int("entries", stats.Removed),
			slog.Int("temp", stats.TempRemoved),
			slog.Int64("freed", stats.FreedBytes),
			slog.Int64("remaining", stats.RemainingBytes))
	}
	return stats, nil
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log().Warn("cache remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.New(slog.DiscardHandler)
}

func isEntry(name string) bool {
	return strings.HasSuffix(name, entryExt) && !strings.HasPrefix(name, tempPrefix)
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
