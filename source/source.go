// Package source serves exact random-access reads of decoded units from a
// media file and its index.
//
// A Source owns one demuxer and one decoder. Reads of self-contained units
// seek straight to the unit. Units that depend on earlier packets are
// reached by seeking to their sync point, decoding forward, and checking the
// result against the hash recorded in the index; a mismatch widens the
// preroll and finally falls back to decoding from the first unit.
//
// A Source is not safe for concurrent use.
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/index"
)

const (
	// DefaultMaxCacheBytes bounds the decode-ahead cache.
	DefaultMaxCacheBytes = 64 << 20

	// DefaultMaxRetries is how many times the preroll is doubled before
	// decoding from the first unit.
	DefaultMaxRetries = 3
)

// Options configures a Source.
type Options struct {
	// MaxCacheBytes bounds the decoded units kept for reuse. Zero uses
	// DefaultMaxCacheBytes; negative disables the cache.
	MaxCacheBytes int64

	// Preroll is the number of extra units decoded before a unit's sync
	// point after a seek.
	Preroll int

	// MaxRetries bounds preroll doubling. Zero uses DefaultMaxRetries.
	MaxRetries int

	// SamplesPerUnit must match the value the index was built with.
	SamplesPerUnit int

	// Formats and Codecs override the built-in formats and decoders.
	Formats []demux.Format
	Codecs  codec.Registry

	Logger *slog.Logger
}

// Source reads decoded units by index.
type Source struct {
	idx   *index.Index
	dmx   demux.Demuxer
	dec   codec.Decoder
	log   *slog.Logger
	cache *unitCache

	preroll    int
	maxRetries int
	frame      int64
	stream     int
	warmup     int

	// next is the unit the demuxer and decoder produce next, or -1 when the
	// decoder state is unknown.
	next int64

	closed bool
	broken error
}

// Open binds idx to a demuxer and decoder reading through r.
func Open(r io.ReaderAt, size int64, idx *index.Index, opts Options) (*Source, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, errors.New("source: empty index")
	}
	dmx, err := demux.Probe(r, size, demux.Options{SamplesPerUnit: opts.SamplesPerUnit}, opts.Formats...)
	if err != nil {
		return nil, err
	}
	if dmx.Format() != idx.Format() {
		return nil, fmt.Errorf("source: file is %s but index is %s", dmx.Format(), idx.Format())
	}
	track := idx.Track()
	streams := dmx.Streams()
	if track.ID < 0 || track.ID >= len(streams) {
		return nil, fmt.Errorf("%w: track %d", avtype.ErrNoTrack, track.ID)
	}
	codecs := opts.Codecs
	if codecs == nil {
		codecs = codec.DefaultRegistry()
	}
	dec, err := codecs.New(streams[track.ID])
	if err != nil {
		return nil, err
	}
	if got := dec.Track().FrameSize(); got != track.FrameSize() {
		_ = dec.Close()
		return nil, fmt.Errorf("source: decoder frame size %d does not match index %d", got, track.FrameSize())
	}

	maxBytes := opts.MaxCacheBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxCacheBytes
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Source{
		idx:        idx,
		dmx:        dmx,
		dec:        dec,
		log:        log,
		cache:      newUnitCache(max(maxBytes, 0)),
		preroll:    max(opts.Preroll, 0),
		maxRetries: retries,
		frame:      int64(track.FrameSize()),
		stream:     track.ID,
		warmup:     dec.Warmup(),
		next:       -1,
	}, nil
}

// Index returns the index the source reads from.
func (s *Source) Index() *index.Index {
	return s.idx
}

// Read returns the decoded payloads of units [start, start+count). The range
// is clamped to the end of the index. Identical calls return identical
// bytes; returned slices must not be modified.
func (s *Source) Read(start, count int64) ([][]byte, error) {
	if s.closed {
		return nil, &avtype.ReadError{Start: start, Count: count, Err: avtype.ErrClosed}
	}
	if s.broken != nil {
		return nil, s.broken
	}
	if start < 0 || start >= s.idx.Len() || count < 0 {
		return nil, &avtype.ReadError{Start: start, Count: count, Err: avtype.ErrOutOfRange}
	}
	end := min(start+count, s.idx.Len())
	out := make([][]byte, 0, end-start)
	for i := start; i < end; i++ {
		data, err := s.unit(i)
		if err != nil {
			return nil, s.fail(start, count, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// Close releases the decoder. Later reads fail with avtype.ErrClosed.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.clear()
	return s.dec.Close()
}

// ioError marks a failure of the underlying reader.
type ioError struct{ err error }

func (e ioError) Error() string { return e.err.Error() }
func (e ioError) Unwrap() error { return e.err }

func (s *Source) fail(start, count int64, err error) error {
	s.next = -1
	var ioe ioError
	if errors.As(err, &ioe) {
		s.broken = &avtype.ReadError{Start: start, Count: count, Err: fmt.Errorf("%w: %w", avtype.ErrBroken, ioe.err)}
		s.log.Error("source broken", slog.String("error", ioe.err.Error()))
		return s.broken
	}
	return &avtype.ReadError{Start: start, Count: count, Err: err}
}

func (s *Source) unit(i int64) ([]byte, error) {
	if data, ok := s.cache.get(i); ok {
		return data, nil
	}
	if s.next == i {
		data, err := s.decodeNext()
		if err == nil && s.verify(i, data) {
			s.cache.put(i, data)
			return data, nil
		}
		var ioe ioError
		if errors.As(err, &ioe) {
			return nil, err
		}
		s.log.Debug("sequential decode diverged", slog.Int64("unit", i))
	}
	data, err := s.seek(i)
	if err != nil {
		return nil, err
	}
	s.cache.put(i, data)
	return data, nil
}

// selfContained reports whether unit i decodes without earlier units.
func (s *Source) selfContained(u avtype.Unit) bool {
	return u.Sync == u.Index && s.warmup == 0
}

// seek positions the decoder before unit i and decodes it. When the output
// does not match the index the preroll is doubled, up to maxRetries times,
// and then decoding starts over from the first unit.
func (s *Source) seek(i int64) ([]byte, error) {
	u := s.idx.Unit(i)
	preroll := s.preroll
	if s.selfContained(u) {
		preroll = 0
	}
	for attempt := 0; ; attempt++ {
		var from int64
		if attempt <= s.maxRetries {
			from = max(u.Sync-int64(preroll), 0)
		}
		data, err := s.decodeFrom(from, i)
		if err != nil {
			return nil, err
		}
		if s.verify(i, data) {
			return data, nil
		}
		if from == 0 {
			return nil, fmt.Errorf("%w: unit %d does not match index", avtype.ErrCorrupt, i)
		}
		s.log.Debug("seek mismatch, widening preroll",
			slog.Int64("unit", i),
			slog.Int64("from", from),
			slog.Int("preroll", preroll))
		preroll = max(preroll*2, 1)
	}
}

// decodeFrom resets the decoder, seeks to unit from and decodes through
// unit target, returning the target payload. Decode errors before the
// target are tolerated; the payload check catches their effect.
func (s *Source) decodeFrom(from, target int64) ([]byte, error) {
	s.dec.Reset()
	s.next = -1
	if err := s.dmx.SeekTo(s.idx.Unit(from).Offset); err != nil {
		return nil, fmt.Errorf("%w: seek to unit %d: %w", avtype.ErrCorrupt, from, err)
	}
	s.next = from
	for {
		i := s.next
		data, err := s.decodeNext()
		if err != nil {
			var ioe ioError
			if i == target || s.next < 0 || errors.As(err, &ioe) {
				return nil, err
			}
			// decodeNext has moved past the failed packet.
			continue
		}
		if i == target {
			return data, nil
		}
	}
}

// decodeNext demuxes and decodes unit s.next.
func (s *Source) decodeNext() ([]byte, error) {
	i := s.next
	u := s.idx.Unit(i)
	pkt, err := s.nextPacket()
	if err != nil {
		s.next = -1
		return nil, err
	}
	if pkt.Offset != u.Offset || len(pkt.Data) != int(u.Size) {
		s.next = -1
		return nil, fmt.Errorf("%w: packet at offset %d does not match unit %d", avtype.ErrCorrupt, pkt.Offset, i)
	}
	data, err := s.dec.Decode(pkt)
	if err != nil {
		// The decoder resets itself; the demuxer is positioned after the
		// packet.
		s.next = i + 1
		if s.next >= s.idx.Len() {
			s.next = -1
		}
		return nil, fmt.Errorf("decode unit %d: %w", i, err)
	}
	s.next = i + 1
	if s.next >= s.idx.Len() {
		s.next = -1
	}
	return data, nil
}

func (s *Source) nextPacket() (demux.Packet, error) {
	for {
		pkt, err := s.dmx.Next()
		switch {
		case errors.Is(err, io.EOF):
			return demux.Packet{}, fmt.Errorf("%w: stream ended before unit %d", avtype.ErrCorrupt, s.next)
		case errors.Is(err, avtype.ErrCorrupt):
			return demux.Packet{}, err
		case err != nil:
			return demux.Packet{}, ioError{err}
		}
		if pkt.Stream == s.stream {
			return pkt, nil
		}
	}
}

// verify checks a decoded payload against the index.
func (s *Source) verify(i int64, data []byte) bool {
	u := s.idx.Unit(i)
	if int64(len(data)) != int64(u.Samples)*s.frame {
		return false
	}
	return u.Hash == 0 || xxhash.Sum64(data) == u.Hash
}
