package demux_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/testutil"
)

func TestY4MPackets(t *testing.T) {
	t.Parallel()

	spec := testutil.Y4MSpec{Width: 6, Height: 4, FPS: "24000:1001", Frames: 5}
	d := openData(t, testutil.Y4M(spec), demux.Options{})

	s := d.Streams()[0]
	assert.Equal(t, avtype.KindVideo, s.Kind)
	assert.Equal(t, "rawvideo", s.Codec)
	assert.Equal(t, 6, s.Width)
	assert.Equal(t, 4, s.Height)
	assert.Equal(t, 24000, s.FPSNum)
	assert.Equal(t, 1001, s.FPSDen)
	assert.Equal(t, "yuv420p", s.PixelFormat)
	assert.Equal(t, spec.FrameSize(), s.FrameBytes)
	assert.True(t, s.ExactTiming)

	pkts := drain(t, d)
	require.Len(t, pkts, 5)
	for i, p := range pkts {
		assert.Equal(t, testutil.Y4MFrame(spec, i), p.Data)
		assert.Equal(t, int64(1), p.Samples)
		assert.True(t, p.Key)
	}

	require.NoError(t, d.SeekTo(pkts[3].Offset))
	p, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, testutil.Y4MFrame(spec, 3), p.Data)
	assert.Error(t, d.SeekTo(pkts[3].Offset+1))
}

func TestY4MColorspaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		colorspace string
		pixfmt     string
	}{
		{"420jpeg", "yuv420p"},
		{"444", "yuv444p"},
		{"mono", "gray"},
		{"420p10", "yuv420p10"},
	}
	for _, tt := range tests {
		t.Run(tt.colorspace, func(t *testing.T) {
			t.Parallel()
			spec := testutil.Y4MSpec{Width: 5, Height: 3, Colorspace: tt.colorspace, Frames: 2}
			d := openData(t, testutil.Y4M(spec), demux.Options{})
			s := d.Streams()[0]
			assert.Equal(t, tt.pixfmt, s.PixelFormat)
			assert.Equal(t, spec.FrameSize(), s.FrameBytes)
			assert.Len(t, drain(t, d), 2)
		})
	}
}

func TestY4MTruncatedFrame(t *testing.T) {
	t.Parallel()

	data := testutil.Y4M(testutil.Y4MSpec{Width: 4, Height: 4, Frames: 3})
	d := openData(t, data[:len(data)-1], demux.Options{})
	for range 2 {
		_, err := d.Next()
		require.NoError(t, err)
	}
	_, err := d.Next()
	require.ErrorIs(t, err, avtype.ErrCorrupt)
}

func TestY4MRejectsBadHeader(t *testing.T) {
	t.Parallel()

	for _, header := range []string{
		"YUV4MPEG2 W0 H4 F25:1\n",
		"YUV4MPEG2 W4 H4 F25:0\n",
		"YUV4MPEG2 W4 H4 F25:1 It\n",
		"YUV4MPEG2 W4 H4 F25:1 C411\n",
		"YUV4MPEG2 W4 H4 F25:1",
	} {
		src := testutil.NewByteSource([]byte(header))
		_, err := demux.Probe(src, src.Size(), demux.Options{})
		assert.Error(t, err, header)
	}
}
