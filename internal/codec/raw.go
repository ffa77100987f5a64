package codec

import (
	"fmt"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
)

// raw passes packet bytes through unchanged.
type raw struct {
	track avtype.Track
}

// NewPCM returns a decoder for uncompressed audio samples.
func NewPCM(stream demux.Stream) (Decoder, error) {
	if stream.Kind != avtype.KindAudio || stream.FrameSize() <= 0 {
		return nil, fmt.Errorf("%w: pcm stream %s", avtype.ErrUnsupported, stream.Track)
	}
	return &raw{track: stream.Track}, nil
}

// NewRawVideo returns a decoder for uncompressed video frames.
func NewRawVideo(stream demux.Stream) (Decoder, error) {
	if stream.Kind != avtype.KindVideo || stream.FrameBytes <= 0 {
		return nil, fmt.Errorf("%w: raw video stream %s", avtype.ErrUnsupported, stream.Track)
	}
	return &raw{track: stream.Track}, nil
}

func (d *raw) Decode(pkt demux.Packet) ([]byte, error) {
	if len(pkt.Data)%d.track.FrameSize() != 0 {
		return nil, fmt.Errorf("%w: packet at offset %d holds a partial sample", avtype.ErrCorrupt, pkt.Offset)
	}
	return pkt.Data, nil
}

func (d *raw) Reset() {}

func (d *raw) Track() avtype.Track { return d.track }

func (d *raw) Warmup() int { return 0 }

func (d *raw) Close() error { return nil }
