package index

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex/internal/avtype"
)

var pcmTrack = avtype.Track{
	Kind:           avtype.KindAudio,
	Codec:          "pcm",
	SampleRate:     48000,
	Channels:       2,
	BytesPerSample: 2,
}

// buildUnits builds an index of units with the given sample counts laid out
// back to back.
func buildUnits(t *testing.T, samples ...uint32) *Index {
	t.Helper()
	b := NewBuilder("wav", pcmTrack, "track=-1 exact=true spu=1024")
	var pts, off int64
	for i, n := range samples {
		b.Append(avtype.Unit{PTS: pts, Offset: off, Size: n * 4, Samples: n, Sync: int64(i), Exact: true, Key: true})
		pts += int64(n)
		off += int64(n) * 4
	}
	return b.Freeze()
}

func TestBuilderAssignsIndexes(t *testing.T) {
	t.Parallel()

	b := NewBuilder("fake", pcmTrack, "")
	for i := range 5 {
		u := b.Append(avtype.Unit{PTS: int64(i) * 10, Samples: 10, Exact: true, Index: 99})
		assert.Equal(t, int64(i), u.Index)
	}
	assert.Equal(t, int64(5), b.Len())
	b.SetHash(3, 0xABCD)

	idx := b.Freeze()
	assert.Equal(t, uint64(0xABCD), idx.Unit(3).Hash)
	assert.True(t, idx.Exact())
	assert.True(t, idx.Complete())
	assert.Equal(t, int64(50), idx.NumSamples())

	assert.Panics(t, func() { b.Append(avtype.Unit{}) })
}

func TestBuilderExactness(t *testing.T) {
	t.Parallel()

	b := NewBuilder("mp3", pcmTrack, "")
	b.Append(avtype.Unit{Samples: 1152, Exact: true})
	b.Append(avtype.Unit{PTS: 1152, Samples: 1152})
	assert.False(t, b.Freeze().Exact(), "one inexact unit makes the index inexact")

	b = NewBuilder("mp3", pcmTrack, "")
	b.Append(avtype.Unit{Samples: 1152, Exact: true})
	b.Truncated()
	idx := b.Freeze()
	assert.False(t, idx.Complete())
	assert.False(t, idx.Exact(), "a truncated index is not exact")

	assert.False(t, NewBuilder("wav", pcmTrack, "").Freeze().Exact())
}

func TestLocate(t *testing.T) {
	t.Parallel()

	idx := buildUnits(t, 100, 50, 1, 200)
	tests := []struct {
		pos  int64
		want int64
		ok   bool
	}{
		{pos: 0, want: 0, ok: true},
		{pos: 99, want: 0, ok: true},
		{pos: 100, want: 1, ok: true},
		{pos: 149, want: 1, ok: true},
		{pos: 150, want: 2, ok: true},
		{pos: 151, want: 3, ok: true},
		{pos: 350, want: 3, ok: true},
		{pos: 351, ok: false},
		{pos: -1, ok: false},
	}
	for _, tt := range tests {
		got, ok := idx.Locate(tt.pos)
		assert.Equal(t, tt.ok, ok, "pos %d", tt.pos)
		if tt.ok {
			assert.Equal(t, tt.want, got, "pos %d", tt.pos)
		}
	}
}

func TestUnitsIterates(t *testing.T) {
	t.Parallel()

	idx := buildUnits(t, 10, 20, 30)
	var pts []int64
	for u := range idx.Units() {
		pts = append(pts, u.PTS)
	}
	assert.Equal(t, []int64{0, 10, 30}, pts)

	all := slices.Collect(idx.Units())
	require.Len(t, all, 3)
	assert.Equal(t, int64(60), all[2].End())

	var seen int
	for range idx.Units() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestProperties(t *testing.T) {
	t.Parallel()

	idx := buildUnits(t, 1024, 1024, 512)
	ap := idx.Audio()
	assert.Equal(t, avtype.AudioProperties{
		SampleRate:     48000,
		Channels:       2,
		BytesPerSample: 2,
		NumSamples:     2560,
		NumUnits:       3,
		Exact:          true,
	}, ap)

	video := avtype.Track{Kind: avtype.KindVideo, Codec: "rawvideo", Width: 4, Height: 2, FPSNum: 25, FPSDen: 1, PixelFormat: "yuv420p", FrameBytes: 12}
	b := NewBuilder("yuv4mpeg", video, "")
	for i := range 3 {
		b.Append(avtype.Unit{PTS: int64(i), Samples: 1, Exact: true, Sync: int64(i)})
	}
	vp := b.Freeze().Video()
	assert.Equal(t, int64(3), vp.NumFrames)
	assert.Equal(t, 12, vp.FrameBytes)
	assert.Equal(t, "yuv420p", vp.PixelFormat)
}
