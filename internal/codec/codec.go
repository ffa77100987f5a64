// Package codec decodes demuxed packets into raw samples or frames.
package codec

import (
	"fmt"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
)

// Decoder turns packets into decoded bytes in the layout described by
// Track.
//
// Decoders may keep state between packets. Reset discards that state so the
// next packet is decoded as if it started the stream.
type Decoder interface {
	// Decode decodes one packet. Errors for damaged input wrap
	// avtype.ErrCorrupt; the decoder is reset before such an error returns.
	Decode(pkt demux.Packet) ([]byte, error)

	// Reset discards decoder state.
	Reset()

	// Track describes the decoded output.
	Track() avtype.Track

	// Warmup is the number of packets that must be decoded before a packet
	// whose own data is complete produces exact output.
	Warmup() int

	// Close releases decoder resources.
	Close() error
}

// Factory creates a decoder for a stream.
type Factory func(stream demux.Stream) (Decoder, error)

// Registry maps codec names to factories.
type Registry map[string]Factory

// DefaultRegistry returns the built-in decoders.
func DefaultRegistry() Registry {
	return Registry{
		"pcm":      NewPCM,
		"rawvideo": NewRawVideo,
		"mp3":      NewMP3,
	}
}

// New creates a decoder for stream.
func (r Registry) New(stream demux.Stream) (Decoder, error) {
	f, ok := r[stream.Codec]
	if !ok {
		return nil, fmt.Errorf("%w: codec %q", avtype.ErrUnsupported, stream.Codec)
	}
	return f(stream)
}
