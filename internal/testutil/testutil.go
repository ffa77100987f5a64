// Package testutil provides fixtures shared by the avindex tests.
package testutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// ErrInjected is returned by ByteSource reads after FailAfter triggers.
var ErrInjected = errors.New("testutil: injected read failure")

// ByteSource implements io.ReaderAt over a byte slice, counts reads, and
// can be told to start failing.
type ByteSource struct {
	data      []byte
	reads     atomic.Int64
	failAfter atomic.Int64
}

// NewByteSource returns a byte source backed by the provided data.
func NewByteSource(data []byte) *ByteSource {
	s := &ByteSource{data: data}
	s.failAfter.Store(-1)
	return s
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *ByteSource) ReadAt(p []byte, off int64) (int, error) {
	n := s.reads.Add(1)
	if limit := s.failAfter.Load(); limit >= 0 && n > limit {
		return 0, ErrInjected
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	c := copy(p, s.data[off:])
	if c < len(p) {
		return c, io.EOF
	}
	return c, nil
}

// Size returns the total size of the backing data.
func (s *ByteSource) Size() int64 {
	return int64(len(s.data))
}

// Reads returns the number of ReadAt calls so far.
func (s *ByteSource) Reads() int64 {
	return s.reads.Load()
}

// FailAfter makes every read after the next n fail with ErrInjected.
func (s *ByteSource) FailAfter(n int64) {
	s.failAfter.Store(s.reads.Load() + n)
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
