package demux_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/testutil"
)

func TestWAVPackets(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 48000, Channels: 2, Bits: 16, Frames: 2500}
	d := openData(t, testutil.WAV(spec), demux.Options{SamplesPerUnit: 1000})

	s := d.Streams()[0]
	assert.Equal(t, avtype.KindAudio, s.Kind)
	assert.Equal(t, "pcm", s.Codec)
	assert.Equal(t, 48000, s.SampleRate)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 2, s.BytesPerSample)
	assert.True(t, s.ExactTiming)
	assert.Equal(t, int64(3), s.EstimatedPackets)

	pkts := drain(t, d)
	require.Len(t, pkts, 3)
	assert.Equal(t, []int64{1000, 1000, 500}, []int64{pkts[0].Samples, pkts[1].Samples, pkts[2].Samples})
	var all []byte
	for _, p := range pkts {
		assert.True(t, p.Key)
		assert.Zero(t, p.Preroll)
		all = append(all, p.Data...)
	}
	assert.Equal(t, testutil.PCMData(spec, 0, spec.Frames), all)
}

func TestWAVFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec testutil.WAVSpec
	}{
		{"u8 mono", testutil.WAVSpec{SampleRate: 8000, Channels: 1, Bits: 8, Frames: 100}},
		{"s24 stereo", testutil.WAVSpec{SampleRate: 44100, Channels: 2, Bits: 24, Frames: 100}},
		{"f32 extensible", testutil.WAVSpec{SampleRate: 96000, Channels: 6, Bits: 32, Float: true, Frames: 100, Extensible: true}},
		{"f64", testutil.WAVSpec{SampleRate: 44100, Channels: 1, Bits: 64, Float: true, Frames: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := openData(t, testutil.WAV(tt.spec), demux.Options{})
			s := d.Streams()[0]
			assert.Equal(t, tt.spec.Channels, s.Channels)
			assert.Equal(t, tt.spec.Bits/8, s.BytesPerSample)
			assert.Equal(t, tt.spec.Float, s.Float)

			pkts := drain(t, d)
			require.Len(t, pkts, 1)
			assert.Equal(t, int64(100), pkts[0].Samples)
		})
	}
}

func TestWAVStreamedSize(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 8000, Channels: 1, Bits: 16, Frames: 3000, StreamedSize: true}
	d := openData(t, testutil.WAV(spec), demux.Options{})
	var total int64
	for _, p := range drain(t, d) {
		total += p.Samples
	}
	assert.Equal(t, spec.Frames, total)
}

func TestWAVDropsPartialFrame(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 8000, Channels: 2, Bits: 16, Frames: 10}
	data := testutil.WAV(spec)
	// Cut the file in the middle of the last frame.
	d := openData(t, data[:len(data)-2], demux.Options{})
	pkts := drain(t, d)
	require.Len(t, pkts, 1)
	assert.Equal(t, int64(9), pkts[0].Samples)
}

func TestWAVRejects(t *testing.T) {
	t.Parallel()

	good := testutil.WAV(testutil.WAVSpec{SampleRate: 8000, Channels: 1, Bits: 16, Frames: 10})
	fmtOff := bytes.Index(good, []byte("fmt "))
	require.Positive(t, fmtOff)

	tests := []struct {
		name   string
		mutate func([]byte)
		err    error
	}{
		{"compressed format tag", func(b []byte) { b[fmtOff+8] = 0x55 }, avtype.ErrUnsupported},
		{"odd bit depth", func(b []byte) { b[fmtOff+8+14] = 12 }, avtype.ErrUnsupported},
		{"zero channels", func(b []byte) { b[fmtOff+8+2] = 0 }, nil},
		{"missing data", func(b []byte) { copy(b[bytes.Index(b, []byte("data")):], "junk") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := bytes.Clone(good)
			tt.mutate(data)
			src := testutil.NewByteSource(data)
			_, err := demux.Probe(src, src.Size(), demux.Options{})
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestWAVSeek(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 8000, Channels: 1, Bits: 16, Frames: 4096}
	d := openData(t, testutil.WAV(spec), demux.Options{})
	pkts := drain(t, d)
	require.Len(t, pkts, 4)

	require.NoError(t, d.SeekTo(pkts[2].Offset))
	p, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, pkts[2].Data, p.Data)

	assert.Error(t, d.SeekTo(pkts[2].Offset+1))
}
