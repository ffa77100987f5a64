package codec

import (
	"bytes"
	"fmt"

	"github.com/hajimehoshi/go-mp3"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
)

// mp3OutputChannels and mp3OutputBytes describe the fixed output layout of
// go-mp3: interleaved 16-bit little-endian stereo.
const (
	mp3OutputChannels = 2
	mp3OutputBytes    = 2

	// mp3MaxFrameSamples bounds the output of one frame with room to spare,
	// so a single read drains everything decoded for a packet.
	mp3MaxFrameSamples = 2 * 1152
)

// mp3Decoder feeds packets to go-mp3 one frame at a time. The feed buffer is
// not seekable, so go-mp3 never scans ahead.
//
// go-mp3 decodes a whole frame per read once its output is drained. Each
// Decode issues exactly one read, which returns what the decoder produced for
// that packet. Reading on to EOF would drop the previous frame go-mp3 keeps
// for the bit reservoir.
type mp3Decoder struct {
	track avtype.Track
	feed  bytes.Buffer
	dec   *mp3.Decoder
}

// NewMP3 returns a Layer III decoder.
func NewMP3(stream demux.Stream) (Decoder, error) {
	if stream.Kind != avtype.KindAudio || stream.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: mp3 stream %s", avtype.ErrUnsupported, stream.Track)
	}
	t := stream.Track
	t.Channels = mp3OutputChannels
	t.BytesPerSample = mp3OutputBytes
	t.Float = false
	return &mp3Decoder{track: t}, nil
}

func (d *mp3Decoder) Decode(pkt demux.Packet) (out []byte, err error) {
	// go-mp3 indexes tables with values taken from the bitstream.
	defer func() {
		if r := recover(); r != nil {
			d.Reset()
			out, err = nil, fmt.Errorf("%w: mp3 frame at offset %d: %v", avtype.ErrCorrupt, pkt.Offset, r)
		}
	}()

	d.feed.Write(pkt.Data)
	if d.dec == nil {
		dec, err := mp3.NewDecoder(&d.feed)
		if err != nil {
			d.Reset()
			return nil, fmt.Errorf("%w: mp3 frame at offset %d: %w", avtype.ErrCorrupt, pkt.Offset, err)
		}
		d.dec = dec
	}
	buf := make([]byte, mp3MaxFrameSamples*d.track.FrameSize())
	n, err := d.dec.Read(buf)
	switch {
	case err != nil:
		d.Reset()
		return nil, fmt.Errorf("%w: mp3 frame at offset %d: %w", avtype.ErrCorrupt, pkt.Offset, err)
	case n == len(buf) || n%d.track.FrameSize() != 0:
		d.Reset()
		return nil, fmt.Errorf("%w: mp3 frame at offset %d decoded to %d bytes", avtype.ErrCorrupt, pkt.Offset, n)
	}
	return buf[:n:n], nil
}

func (d *mp3Decoder) Reset() {
	d.dec = nil
	d.feed.Reset()
}

func (d *mp3Decoder) Track() avtype.Track { return d.track }

// Warmup covers the overlap of the synthesis filterbank with the previous
// frame.
func (d *mp3Decoder) Warmup() int { return 1 }

func (d *mp3Decoder) Close() error {
	d.Reset()
	return nil
}
