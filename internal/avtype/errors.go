package avtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for avindex operations.
var (
	// ErrOpen is matched by every error returned from a failed open.
	ErrOpen = errors.New("avindex: failed to open")

	// ErrUnsupported is returned when no demuxer recognizes the container.
	ErrUnsupported = errors.New("avindex: unsupported container")

	// ErrNoTrack is returned when the selected track does not exist.
	ErrNoTrack = errors.New("avindex: no matching track")

	// ErrIndex is returned when indexing produced no usable unit.
	ErrIndex = errors.New("avindex: indexing failed")

	// ErrCorrupt marks damaged packet data encountered while demuxing or
	// decoding.
	ErrCorrupt = errors.New("avindex: corrupt data")

	// ErrCancelled is returned when an index build was cancelled.
	ErrCancelled = errors.New("avindex: cancelled")

	// ErrCache is returned for unreadable or undecodable cache entries.
	// It never leaves the cache layer; callers see a miss instead.
	ErrCache = errors.New("avindex: cache entry unusable")

	// ErrRead is matched by every error returned from a failed read.
	ErrRead = errors.New("avindex: read failed")

	// ErrOutOfRange is returned when a read starts beyond the last unit.
	ErrOutOfRange = errors.New("avindex: position out of range")

	// ErrShortBuffer is returned when a buffer cannot hold the request.
	ErrShortBuffer = errors.New("avindex: buffer too small")

	// ErrClosed is returned by operations on a closed source or provider.
	ErrClosed = errors.New("avindex: closed")

	// ErrBroken is returned once the decoder handle became unusable.
	ErrBroken = errors.New("avindex: source broken")
)

// OpenError reports a failed open. Op names the step that failed.
type OpenError struct {
	Path string
	Op   string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("avindex: open %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Is reports ErrOpen for every OpenError.
func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// IndexError reports corrupt data at a unit. It is fatal only when no unit
// could be indexed.
type IndexError struct {
	Unit int64
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("avindex: index unit %d: %v", e.Unit, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Is reports ErrIndex for every IndexError.
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// ReadError reports a failed read of units [Start, Start+Count).
type ReadError struct {
	Start int64
	Count int64
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("avindex: read %d+%d: %v", e.Start, e.Count, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is reports ErrRead for every ReadError.
func (e *ReadError) Is(target error) bool { return target == ErrRead }
