package avtype

import (
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
)

// SourceIdentity identifies a source file for cache lookups.
//
// Two files with the same identity are treated as the same source.
type SourceIdentity struct {
	// Path is the absolute, cleaned path of the file.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the modification time in nanoseconds since the epoch.
	ModTime int64

	// Digest is an optional content digest. Empty unless requested.
	Digest digest.Digest
}

// Identify stats path and returns its identity. When withDigest is set the
// file content is hashed as well.
func Identify(path string, withDigest bool) (SourceIdentity, error) {
	f, id, err := OpenFile(path, withDigest)
	if err != nil {
		return SourceIdentity{}, err
	}
	_ = f.Close()
	return id, nil
}

// OpenFile opens path and returns the handle together with its identity.
// Size, modification time and digest all describe the returned handle, so
// the identity matches the bytes later read through it. Failures are
// *OpenError values naming the step.
func OpenFile(path string, withDigest bool) (*os.File, SourceIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, SourceIdentity{}, &OpenError{Path: path, Op: "stat", Err: err}
	}
	abs = filepath.Clean(abs)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, SourceIdentity{}, &OpenError{Path: abs, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, SourceIdentity{}, &OpenError{Path: abs, Op: "stat", Err: errors.New("not a regular file")}
	}
	f, err := os.Open(abs) //nolint:gosec // path is supplied by the host application
	if err != nil {
		return nil, SourceIdentity{}, &OpenError{Path: abs, Op: "open", Err: err}
	}
	id, err := identifyFile(f, abs, withDigest)
	if err != nil {
		_ = f.Close()
		return nil, SourceIdentity{}, err
	}
	return f, id, nil
}

func identifyFile(f *os.File, abs string, withDigest bool) (SourceIdentity, error) {
	info, err := f.Stat()
	if err != nil {
		return SourceIdentity{}, &OpenError{Path: abs, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return SourceIdentity{}, &OpenError{Path: abs, Op: "stat", Err: errors.New("not a regular file")}
	}
	id := SourceIdentity{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}
	if withDigest {
		d, err := digest.SHA256.FromReader(io.NewSectionReader(f, 0, info.Size()))
		if err != nil {
			return SourceIdentity{}, &OpenError{Path: abs, Op: "digest", Err: err}
		}
		// A write during hashing shows up as a changed size or mtime.
		after, err := f.Stat()
		if err != nil {
			return SourceIdentity{}, &OpenError{Path: abs, Op: "stat", Err: err}
		}
		if after.Size() != id.Size || after.ModTime().UnixNano() != id.ModTime {
			return SourceIdentity{}, &OpenError{Path: abs, Op: "digest", Err: fmt.Errorf("%s changed while hashing", abs)}
		}
		id.Digest = d
	}
	return id, nil
}

// Matches reports whether a stored identity still describes the live file.
// Digests are compared only when both sides carry one.
func (id SourceIdentity) Matches(live SourceIdentity) bool {
	if id.Path != live.Path || id.Size != live.Size || id.ModTime != live.ModTime {
		return false
	}
	if id.Digest != "" && live.Digest != "" {
		return id.Digest == live.Digest
	}
	return true
}

// Key derives the cache key for a track of this source. The key depends on
// the path and track only, so a changed file maps to the same entry and is
// detected as stale rather than orphaned.
func (id SourceIdentity) Key(track string) digest.Digest {
	return digest.FromString(id.Path + "\x00" + track)
}
