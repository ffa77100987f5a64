package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/testutil"
)

func openStream(t *testing.T, data []byte) (demux.Demuxer, codec.Decoder) {
	t.Helper()
	src := testutil.NewByteSource(data)
	d, err := demux.Probe(src, src.Size(), demux.Options{})
	require.NoError(t, err)
	dec, err := codec.DefaultRegistry().New(d.Streams()[0])
	require.NoError(t, err)
	t.Cleanup(func() { _ = dec.Close() })
	return d, dec
}

func TestRegistryUnknownCodec(t *testing.T) {
	t.Parallel()

	_, err := codec.DefaultRegistry().New(demux.Stream{Track: avtype.Track{Codec: "vorbis"}})
	require.ErrorIs(t, err, avtype.ErrUnsupported)
}

func TestPCMPassthrough(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 8000, Channels: 2, Bits: 24, Frames: 50}
	d, dec := openStream(t, testutil.WAV(spec))
	assert.Zero(t, dec.Warmup())
	assert.Equal(t, 6, dec.Track().FrameSize())

	p, err := d.Next()
	require.NoError(t, err)
	out, err := dec.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, testutil.PCMData(spec, 0, 50), out)

	p.Data = p.Data[:len(p.Data)-1]
	_, err = dec.Decode(p)
	require.ErrorIs(t, err, avtype.ErrCorrupt)
}

func TestRawVideoPassthrough(t *testing.T) {
	t.Parallel()

	spec := testutil.Y4MSpec{Width: 4, Height: 2, Frames: 2}
	d, dec := openStream(t, testutil.Y4M(spec))
	assert.Equal(t, avtype.KindVideo, dec.Track().Kind)

	_, err := d.Next()
	require.NoError(t, err)
	p, err := d.Next()
	require.NoError(t, err)
	out, err := dec.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, testutil.Y4MFrame(spec, 1), out)
}

func TestMP3DecodesSilence(t *testing.T) {
	t.Parallel()

	d, dec := openStream(t, testutil.MP3(testutil.MP3Spec{Frames: 3}))
	track := dec.Track()
	assert.Equal(t, 2, track.Channels)
	assert.Equal(t, 2, track.BytesPerSample)
	assert.Equal(t, testutil.MP3SampleRate, track.SampleRate)
	assert.Equal(t, 1, dec.Warmup())

	silence := make([]byte, testutil.MP3FrameSamples*4)
	for range 3 {
		p, err := d.Next()
		require.NoError(t, err)
		out, err := dec.Decode(p)
		require.NoError(t, err)
		assert.Equal(t, silence, out)
	}
}

func TestMP3ResetRestartsStream(t *testing.T) {
	t.Parallel()

	d, dec := openStream(t, testutil.MP3(testutil.MP3Spec{Frames: 3}))
	p0, err := d.Next()
	require.NoError(t, err)
	p1, err := d.Next()
	require.NoError(t, err)

	_, err = dec.Decode(p0)
	require.NoError(t, err)
	dec.Reset()
	out, err := dec.Decode(p1)
	require.NoError(t, err)
	assert.Len(t, out, testutil.MP3FrameSamples*4)
}

func TestMP3RejectsGarbage(t *testing.T) {
	t.Parallel()

	d, dec := openStream(t, testutil.MP3(testutil.MP3Spec{Frames: 2}))
	p, err := d.Next()
	require.NoError(t, err)

	p.Data = p.Data[:10]
	_, err = dec.Decode(p)
	require.ErrorIs(t, err, avtype.ErrCorrupt)

	// The decoder starts over with the next packet.
	next, err := d.Next()
	require.NoError(t, err)
	_, err = dec.Decode(next)
	require.NoError(t, err)
}

func TestMP3LengthComesFromDecoder(t *testing.T) {
	t.Parallel()

	d, dec := openStream(t, testutil.MP3(testutil.MP3Spec{Frames: 4}))
	for i, claimed := range []int64{100, 5000, 0, testutil.MP3FrameSamples} {
		p, err := d.Next()
		require.NoError(t, err)
		p.Samples = claimed
		out, err := dec.Decode(p)
		require.NoError(t, err)
		assert.Len(t, out, testutil.MP3FrameSamples*4, "packet %d claiming %d samples", i, claimed)
	}
}
