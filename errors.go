package avindex

import (
	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/internal/avtype"
)

// Errors re-exported from avtype.
var (
	// ErrOpen is matched by every error returned from a failed Open.
	ErrOpen = avtype.ErrOpen

	// ErrUnsupported is returned when no demuxer recognizes the container.
	ErrUnsupported = avtype.ErrUnsupported

	// ErrNoTrack is returned when the selected track does not exist.
	ErrNoTrack = avtype.ErrNoTrack

	// ErrIndex is returned when indexing produced no usable unit.
	ErrIndex = avtype.ErrIndex

	// ErrCorrupt marks damaged packet data.
	ErrCorrupt = avtype.ErrCorrupt

	// ErrCancelled is returned when the index build was cancelled.
	ErrCancelled = avtype.ErrCancelled

	// ErrCache marks an unusable cache entry. Open treats it as a miss.
	ErrCache = avtype.ErrCache

	// ErrRead is matched by every error returned from a failed read.
	ErrRead = avtype.ErrRead

	// ErrOutOfRange is returned when a read starts beyond the end of the track.
	ErrOutOfRange = avtype.ErrOutOfRange

	// ErrShortBuffer is returned when a buffer cannot hold the request.
	ErrShortBuffer = avtype.ErrShortBuffer

	// ErrClosed is returned by operations on a closed provider.
	ErrClosed = avtype.ErrClosed

	// ErrBroken is returned once the underlying file became unreadable.
	ErrBroken = avtype.ErrBroken
)

// Errors re-exported from cache.
var (
	// ErrCacheNotFound is returned by a store with no usable entry.
	ErrCacheNotFound = cache.ErrNotFound

	// ErrCacheStale is returned by a store whose entry no longer matches the file.
	ErrCacheStale = cache.ErrStale
)

// Typed errors re-exported from avtype.
type (
	// OpenError reports a failed Open. Op names the step that failed.
	OpenError = avtype.OpenError

	// IndexError reports corrupt data at a unit during indexing.
	IndexError = avtype.IndexError

	// ReadError reports a failed read of a unit range.
	ReadError = avtype.ReadError
)
