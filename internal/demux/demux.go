// Package demux splits media containers into packets.
//
// Demuxers read through an io.ReaderAt, never hold file handles of their
// own, and report damaged data with errors wrapping avtype.ErrCorrupt so the
// indexer can keep everything before the damage.
package demux

import (
	"fmt"
	"io"

	"github.com/meigma/avindex/internal/avtype"
)

// DefaultSamplesPerUnit is the number of sample frames grouped into one
// unit for containers that store raw samples.
const DefaultSamplesPerUnit = 1024

// probeSize is how many leading bytes are handed to Format.Match.
const probeSize = 64

// Packet is one demuxed packet.
type Packet struct {
	// Stream is the index of the stream the packet belongs to.
	Stream int

	// Offset is the byte offset of the packet in the file.
	Offset int64

	// Data holds the packet bytes. Each packet owns its slice.
	Data []byte

	// Samples is the container-reported duration in samples (frames for
	// video).
	Samples int64

	// Key reports whether the packet starts a decodable sequence on its own.
	Key bool

	// Preroll is the number of preceding packets whose bytes the packet
	// references.
	Preroll int
}

// Stream describes one elementary stream as the container reports it.
type Stream struct {
	avtype.Track

	// ExactTiming reports whether per-packet timing from the container is
	// authoritative, so indexing needs no decoding.
	ExactTiming bool

	// EstimatedPackets is the expected packet count, or 0 if unknown.
	EstimatedPackets int64
}

// Demuxer reads packets sequentially.
type Demuxer interface {
	// Format returns the container format name.
	Format() string

	// Streams returns the streams of the container.
	Streams() []Stream

	// Next returns the next packet. It returns io.EOF at the end of the
	// stream and an error wrapping avtype.ErrCorrupt for damaged data.
	Next() (Packet, error)

	// SeekTo positions the demuxer so the next packet starts at byte offset
	// off, which must be a packet boundary taken from an index.
	SeekTo(off int64) error
}

// Options configures demuxers.
type Options struct {
	// SamplesPerUnit groups raw sample frames into packets.
	SamplesPerUnit int
}

func (o Options) samplesPerUnit() int {
	if o.SamplesPerUnit <= 0 {
		return DefaultSamplesPerUnit
	}
	return o.SamplesPerUnit
}

// Format recognizes and opens one container format.
type Format interface {
	// Name returns the format name.
	Name() string

	// Match reports whether head, the leading bytes of a file, belongs to
	// this format.
	Match(head []byte) bool

	// Open creates a demuxer over r.
	Open(r io.ReaderAt, size int64, opts Options) (Demuxer, error)
}

// DefaultFormats returns the built-in container formats in probe order.
func DefaultFormats() []Format {
	return []Format{WAV{}, Y4M{}, MP3{}}
}

// Probe identifies the container and opens a demuxer for it. When formats is
// empty the built-in formats are tried.
func Probe(r io.ReaderAt, size int64, opts Options, formats ...Format) (Demuxer, error) {
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	head := make([]byte, min(size, probeSize))
	if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for _, f := range formats {
		if f.Match(head) {
			d, err := f.Open(r, size, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name(), err)
			}
			return d, nil
		}
	}
	return nil, avtype.ErrUnsupported
}

// readAt reads exactly len(p) bytes at off. A short read is reported as
// io.ErrUnexpectedEOF.
func readAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
