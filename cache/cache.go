// Package cache persists built indexes so a file is indexed once.
//
// Entries are keyed by source path and track selector. Each entry records
// the identity of the file it was built from and the options stamp of the
// build, so a changed file or changed options are detected as stale rather
// than silently reused.
//
// Cache failures are never fatal: a store that cannot read an entry reports
// ErrNotFound and the caller rebuilds.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/index"
)

var (
	// ErrNotFound is returned when no usable entry exists.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrStale is returned when the stored entry was built from a different
	// file state or with different options. The entry is removed.
	ErrStale = errors.New("cache: entry is stale")
)

// DefaultTempTTL is the age after which abandoned temporary files are
// removed during eviction.
const DefaultTempTTL = time.Hour

// Key identifies a cache entry.
type Key struct {
	// Identity describes the live source file.
	Identity avtype.SourceIdentity

	// Track is the track selector the index is built for.
	Track string

	// Stamp is the options fingerprint of the build.
	Stamp string
}

// Store loads and saves indexes.
//
// Implementations must be safe for concurrent use, including by several
// processes sharing one directory.
type Store interface {
	// Load returns the index stored for key. It returns ErrNotFound when
	// there is no usable entry and ErrStale when the entry does not match
	// key.
	Load(ctx context.Context, key Key) (*index.Index, error)

	// Save stores idx for key, replacing any existing entry atomically.
	Save(ctx context.Context, key Key, idx *index.Index) error

	// Evict removes entries according to policy.
	Evict(ctx context.Context, policy Policy) (EvictStats, error)
}

// Policy controls eviction.
type Policy struct {
	// MaxBytes is the size the store is pruned down to, least recently
	// used first. Zero means unlimited.
	MaxBytes int64

	// MaxAge removes entries not used for longer than this. Zero disables
	// age-based eviction.
	MaxAge time.Duration

	// TempTTL removes temporary files older than this. Zero uses
	// DefaultTempTTL.
	TempTTL time.Duration
}

// EvictStats reports the result of an eviction pass.
type EvictStats struct {
	// Removed is the number of entries deleted.
	Removed int

	// TempRemoved is the number of abandoned temporary files deleted.
	TempRemoved int

	// FreedBytes is the total size of deleted files.
	FreedBytes int64

	// RemainingBytes is the size of the entries left.
	RemainingBytes int64
}
