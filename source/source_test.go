package source

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex/indexer"
	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/demux"
	"github.com/meigma/avindex/internal/index"
	"github.com/meigma/avindex/internal/testutil"
)

type fixture struct {
	src    *testutil.ByteSource
	idx    *index.Index
	format *testutil.FakeFormat
}

func buildFake(t *testing.T, pkts []testutil.FakePacket) fixture {
	t.Helper()
	f := fixture{src: testutil.NewByteSource(testutil.FakeFile(pkts)), format: &testutil.FakeFormat{}}
	idx, err := indexer.Build(context.Background(), f.src, f.src.Size(), indexer.Options{
		Track:         -1,
		ExactDuration: true,
		Formats:       []demux.Format{f.format},
		Codecs:        testutil.FakeCodecs(),
	}, nil)
	require.NoError(t, err)
	f.idx = idx
	return f
}

func (f fixture) open(t *testing.T, opts Options) *Source {
	t.Helper()
	opts.Formats = []demux.Format{f.format}
	opts.Codecs = testutil.FakeCodecs()
	s, err := Open(f.src, f.src.Size(), f.idx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadWAV(t *testing.T) {
	t.Parallel()

	spec := testutil.WAVSpec{SampleRate: 8000, Channels: 2, Bits: 16, Frames: 5000}
	src := testutil.NewByteSource(testutil.WAV(spec))
	opts := indexer.Options{Track: -1, SamplesPerUnit: 512}
	idx, err := indexer.Build(context.Background(), src, src.Size(), opts, nil)
	require.NoError(t, err)

	s, err := Open(src, src.Size(), idx, Options{SamplesPerUnit: 512})
	require.NoError(t, err)
	defer s.Close()

	units, err := s.Read(3, 2)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, testutil.PCMData(spec, 3*512, 512), units[0])
	assert.Equal(t, testutil.PCMData(spec, 4*512, 512), units[1])

	last, err := s.Read(idx.Len()-1, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.PCMData(spec, 9*512, 5000-9*512), last[0])
}

func TestReadY4M(t *testing.T) {
	t.Parallel()

	spec := testutil.Y4MSpec{Width: 4, Height: 4, Frames: 9}
	src := testutil.NewByteSource(testutil.Y4M(spec))
	idx, err := indexer.Build(context.Background(), src, src.Size(), indexer.Options{Track: 0}, nil)
	require.NoError(t, err)

	s, err := Open(src, src.Size(), idx, Options{})
	require.NoError(t, err)
	defer s.Close()

	for _, i := range []int64{7, 2, 3, 8, 0} {
		frames, err := s.Read(i, 1)
		require.NoError(t, err)
		assert.Equal(t, testutil.Y4MFrame(spec, int(i)), frames[0])
	}
}

func TestReadMP3(t *testing.T) {
	t.Parallel()

	src := testutil.NewByteSource(testutil.MP3(testutil.MP3Spec{Frames: 12}))
	idx, err := indexer.Build(context.Background(), src, src.Size(), indexer.Options{Track: -1, ExactDuration: true}, nil)
	require.NoError(t, err)

	s, err := Open(src, src.Size(), idx, Options{MaxCacheBytes: -1})
	require.NoError(t, err)
	defer s.Close()

	silence := make([]byte, testutil.MP3FrameSamples*4)
	for _, i := range []int64{9, 0, 5, 6, 11} {
		units, err := s.Read(i, 1)
		require.NoError(t, err)
		assert.Equal(t, silence, units[0])
	}
}

func TestReadMP3RandomAccessMatchesLinearDecode(t *testing.T) {
	t.Parallel()

	for seed := range uint64(8) {
		src := testutil.NewByteSource(testutil.MP3(testutil.MP3Spec{Frames: 60, Noise: true, Seed: seed}))
		idx, err := indexer.Build(context.Background(), src, src.Size(), indexer.Options{Track: -1, ExactDuration: true}, nil)
		require.NoError(t, err)
		require.True(t, idx.Complete(), "seed %d", seed)
		require.Equal(t, int64(60), idx.Len(), "seed %d", seed)

		linear, err := Open(src, src.Size(), idx, Options{MaxCacheBytes: -1})
		require.NoError(t, err)
		want, err := linear.Read(0, idx.Len())
		require.NoError(t, err)
		require.NoError(t, linear.Close())

		silent := 0
		for _, u := range want {
			if !bytes.Equal(u, make([]byte, len(u))) {
				continue
			}
			silent++
		}
		require.Less(t, silent, len(want)/2, "seed %d: noise frames must not decode to silence", seed)

		s, err := Open(src, src.Size(), idx, Options{MaxCacheBytes: -1})
		require.NoError(t, err)
		rng := rand.New(rand.NewPCG(seed, 1))
		for range 40 {
			i := rng.Int64N(idx.Len())
			units, err := s.Read(i, 1)
			require.NoError(t, err)
			assert.Equal(t, want[i], units[0], "seed %d unit %d", seed, i)
		}
		require.NoError(t, s.Close())
	}
}

func TestReadRandomAccessMatchesLinearDecode(t *testing.T) {
	t.Parallel()

	pkts := testutil.FakePackets(40, 32)
	want := testutil.FakeOutput(pkts)
	f := buildFake(t, pkts)
	s := f.open(t, Options{MaxCacheBytes: -1})

	for _, i := range []int64{17, 3, 39, 0, 18, 18, 25, 1} {
		units, err := s.Read(i, 1)
		require.NoError(t, err)
		assert.Equal(t, want[i], units[0], "unit %d", i)
	}
}

func TestReadIdempotent(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(30, 32))
	s := f.open(t, Options{MaxCacheBytes: -1})

	first, err := s.Read(10, 7)
	require.NoError(t, err)
	second, err := s.Read(10, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadChunkingInvariance(t *testing.T) {
	t.Parallel()

	pkts := testutil.FakePackets(50, 16)
	f := buildFake(t, pkts)
	s := f.open(t, Options{MaxCacheBytes: -1})

	whole, err := s.Read(0, f.idx.Len())
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeOutput(pkts), whole)

	for _, chunk := range []int64{1, 3, 7, 50} {
		var got [][]byte
		for start := int64(0); start < f.idx.Len(); start += chunk {
			units, err := s.Read(start, chunk)
			require.NoError(t, err)
			got = append(got, units...)
		}
		assert.Equal(t, bytes.Join(whole, nil), bytes.Join(got, nil), "chunk %d", chunk)
	}
}

func TestReadClampsTail(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(20, 16))
	s := f.open(t, Options{})

	units, err := s.Read(f.idx.Len()-5, 10)
	require.NoError(t, err)
	assert.Len(t, units, 5)
}

func TestReadOutOfRange(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(5, 16))
	s := f.open(t, Options{})

	for _, tc := range [][2]int64{{5, 1}, {-1, 1}, {0, -1}} {
		_, err := s.Read(tc[0], tc[1])
		require.ErrorIs(t, err, avtype.ErrOutOfRange)
		require.ErrorIs(t, err, avtype.ErrRead)
	}

	units, err := s.Read(0, 0)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestReadSequentialDoesNotSeek(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(20, 16))
	s := f.open(t, Options{MaxCacheBytes: -1})

	_, err := s.Read(4, 1)
	require.NoError(t, err)
	seeks := f.format.Seeks()
	for i := int64(5); i < 12; i++ {
		_, err := s.Read(i, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, seeks, f.format.Seeks())
}

func TestReadCacheHit(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(20, 16))
	s := f.open(t, Options{})

	first, err := s.Read(8, 2)
	require.NoError(t, err)
	reads := f.src.Reads()
	second, err := s.Read(8, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, reads, f.src.Reads())
}

func TestReadWidensPrerollOnMismatch(t *testing.T) {
	t.Parallel()

	// The container claims every packet stands alone, but the decoder
	// still depends on the previous packet.
	pkts := testutil.FakePackets(16, 16)
	for i := range pkts {
		pkts[i].Preroll = 0
	}
	want := testutil.FakeOutput(pkts)
	f := buildFake(t, pkts)
	for u := range f.idx.Units() {
		require.Equal(t, u.Index, u.Sync)
	}

	s := f.open(t, Options{MaxCacheBytes: -1})
	for _, i := range []int64{9, 2, 15} {
		units, err := s.Read(i, 1)
		require.NoError(t, err)
		assert.Equal(t, want[i], units[0], "unit %d", i)
	}
}

func TestReadDecodeErrorKeepsSourceUsable(t *testing.T) {
	t.Parallel()

	pkts := testutil.FakePackets(10, 16)
	f := buildFake(t, pkts)

	// Damage packet 6 in place after indexing.
	pkts[6].Corrupt = true
	damaged := fixture{src: testutil.NewByteSource(testutil.FakeFile(pkts)), idx: f.idx, format: f.format}
	s := damaged.open(t, Options{MaxCacheBytes: -1})

	_, err := s.Read(6, 1)
	require.ErrorIs(t, err, avtype.ErrRead)
	require.ErrorIs(t, err, avtype.ErrCorrupt)
	require.NotErrorIs(t, err, avtype.ErrBroken)

	units, err := s.Read(2, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeOutput(pkts)[2], units[0])
}

func TestReadBrokenIsTerminal(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(10, 16))
	s := f.open(t, Options{MaxCacheBytes: -1})

	f.src.FailAfter(0)
	_, err := s.Read(3, 1)
	require.ErrorIs(t, err, avtype.ErrBroken)
	require.ErrorIs(t, err, testutil.ErrInjected)

	f.src.FailAfter(1 << 30)
	_, again := s.Read(0, 1)
	assert.Equal(t, err, again)
}

func TestReadAfterClose(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(3, 16))
	s := f.open(t, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Read(0, 1)
	require.ErrorIs(t, err, avtype.ErrClosed)
}

func TestOpenRejectsMismatchedFile(t *testing.T) {
	t.Parallel()

	f := buildFake(t, testutil.FakePackets(3, 16))
	wav := testutil.NewByteSource(testutil.WAV(testutil.WAVSpec{SampleRate: 8000, Channels: 1, Bits: 16, Frames: 10}))
	_, err := Open(wav, wav.Size(), f.idx, Options{})
	require.Error(t, err)
}
