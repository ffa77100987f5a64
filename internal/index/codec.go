package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/fb"
)

// Version is the cache entry format version. Entries with another version
// are rejected.
const Version uint32 = 1

var magic = [4]byte{'A', 'V', 'I', 'X'}

const headerSize = 8

const (
	flagExact byte = 1 << iota
	flagKey
)

// maxEntrySize bounds decompressed entries so a damaged header cannot
// trigger huge allocations.
const maxEntrySize = 1 << 30

// Entry is a decoded cache entry.
type Entry struct {
	Identity avtype.SourceIdentity
	Index    *Index
	Created  time.Time
}

// Marshal encodes idx and the identity it was built from as a cache entry.
func Marshal(id avtype.SourceIdentity, idx *Index) ([]byte, error) {
	raw := buildEntry(id, idx)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	out := make([]byte, headerSize, headerSize+len(raw)/4)
	copy(out, magic[:])
	binary.LittleEndian.PutUint32(out[4:], Version)
	return enc.EncodeAll(raw, out), nil
}

// Unmarshal decodes a cache entry. Every failure wraps avtype.ErrCache.
func Unmarshal(data []byte) (entry *Entry, err error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic", avtype.ErrCache)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", avtype.ErrCache, v, Version)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxEntrySize), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", avtype.ErrCache, err)
	}
	if len(raw) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: truncated entry", avtype.ErrCache)
	}

	// FlatBuffers accessors index into the buffer without bounds checks of
	// their own.
	defer func() {
		if r := recover(); r != nil {
			entry = nil
			err = fmt.Errorf("%w: malformed entry: %v", avtype.ErrCache, r)
		}
	}()
	return parseEntry(raw)
}

func buildEntry(id avtype.SourceIdentity, idx *Index) []byte {
	builder := flatbuffers.NewBuilder(64 + len(idx.units)*48)

	pathOffset := builder.CreateString(id.Path)
	digestOffset := builder.CreateString(string(id.Digest))
	fb.IdentityStart(builder)
	fb.IdentityAddPath(builder, pathOffset)
	fb.IdentityAddSize(builder, id.Size)
	fb.IdentityAddMtimeNs(builder, id.ModTime)
	fb.IdentityAddDigest(builder, digestOffset)
	identityOffset := fb.IdentityEnd(builder)

	t := idx.track
	codecOffset := builder.CreateString(t.Codec)
	pixOffset := builder.CreateString(t.PixelFormat)
	fb.TrackStart(builder)
	fb.TrackAddId(builder, i32(t.ID))
	fb.TrackAddKind(builder, byte(t.Kind))
	fb.TrackAddCodec(builder, codecOffset)
	fb.TrackAddSampleRate(builder, i32(t.SampleRate))
	fb.TrackAddChannels(builder, i32(t.Channels))
	fb.TrackAddBytesPerSample(builder, i32(t.BytesPerSample))
	fb.TrackAddFloat(builder, t.Float)
	fb.TrackAddWidth(builder, i32(t.Width))
	fb.TrackAddHeight(builder, i32(t.Height))
	fb.TrackAddFpsNum(builder, i32(t.FPSNum))
	fb.TrackAddFpsDen(builder, i32(t.FPSDen))
	fb.TrackAddPixelFormat(builder, pixOffset)
	fb.TrackAddFrameBytes(builder, i32(t.FrameBytes))
	trackOffset := fb.TrackEnd(builder)

	formatOffset := builder.CreateString(idx.format)
	optionsOffset := builder.CreateString(idx.options)

	// Structs are laid out back to front.
	fb.EntryStartUnitsVector(builder, len(idx.units))
	for i := len(idx.units) - 1; i >= 0; i-- {
		u := idx.units[i]
		var flags byte
		if u.Exact {
			flags |= flagExact
		}
		if u.Key {
			flags |= flagKey
		}
		fb.CreateUnit(builder, u.PTS, u.Offset, u.Sync, u.Hash, u.Size, u.Samples, flags)
	}
	unitsOffset := builder.EndVector(len(idx.units))

	fb.EntryStart(builder)
	fb.EntryAddVersion(builder, Version)
	fb.EntryAddFormat(builder, formatOffset)
	fb.EntryAddIdentity(builder, identityOffset)
	fb.EntryAddOptions(builder, optionsOffset)
	fb.EntryAddTrack(builder, trackOffset)
	fb.EntryAddUnits(builder, unitsOffset)
	fb.EntryAddExact(builder, idx.exact)
	fb.EntryAddComplete(builder, idx.complete)
	fb.EntryAddCreatedNs(builder, time.Now().UnixNano())
	builder.Finish(fb.EntryEnd(builder))
	return builder.FinishedBytes()
}

func parseEntry(raw []byte) (*Entry, error) {
	root := fb.GetRootAsEntry(raw, 0)
	if root.Version() != Version {
		return nil, fmt.Errorf("%w: entry version %d", avtype.ErrCache, root.Version())
	}

	fid := root.Identity(nil)
	if fid == nil {
		return nil, fmt.Errorf("%w: missing identity", avtype.ErrCache)
	}
	id := avtype.SourceIdentity{
		Path:    string(fid.Path()),
		Size:    fid.Size(),
		ModTime: fid.MtimeNs(),
		Digest:  digest.Digest(fid.Digest()),
	}

	ft := root.Track(nil)
	if ft == nil {
		return nil, fmt.Errorf("%w: missing track", avtype.ErrCache)
	}
	track := avtype.Track{
		ID:             int(ft.Id()),
		Kind:           avtype.Kind(ft.Kind()),
		Codec:          string(ft.Codec()),
		SampleRate:     int(ft.SampleRate()),
		Channels:       int(ft.Channels()),
		BytesPerSample: int(ft.BytesPerSample()),
		Float:          ft.Float(),
		Width:          int(ft.Width()),
		Height:         int(ft.Height()),
		FPSNum:         int(ft.FpsNum()),
		FPSDen:         int(ft.FpsDen()),
		PixelFormat:    string(ft.PixelFormat()),
		FrameBytes:     int(ft.FrameBytes()),
	}
	if track.FrameSize() <= 0 {
		return nil, fmt.Errorf("%w: invalid track %s", avtype.ErrCache, track)
	}

	n := root.UnitsLength()
	if n == 0 {
		return nil, fmt.Errorf("%w: entry has no units", avtype.ErrCache)
	}
	if n*48 > len(raw) {
		return nil, fmt.Errorf("%w: unit vector exceeds entry", avtype.ErrCache)
	}
	units := make([]avtype.Unit, n)
	var fu fb.Unit
	var next int64
	for i := range n {
		if !root.Units(&fu, i) {
			return nil, fmt.Errorf("%w: missing units", avtype.ErrCache)
		}
		u := avtype.Unit{
			Index:   int64(i),
			PTS:     fu.Pts(),
			Offset:  fu.Offset(),
			Size:    fu.Size(),
			Samples: fu.Samples(),
			Sync:    fu.Sync(),
			Exact:   fu.Flags()&flagExact != 0,
			Key:     fu.Flags()&flagKey != 0,
			Hash:    fu.Hash(),
		}
		if err := checkUnit(u, next); err != nil {
			return nil, err
		}
		next = u.End()
		units[i] = u
	}

	return &Entry{
		Identity: id,
		Created:  time.Unix(0, root.CreatedNs()),
		Index: &Index{
			format:   string(root.Format()),
			track:    track,
			units:    units,
			exact:    root.Exact(),
			complete: root.Complete(),
			options:  string(root.Options()),
		},
	}, nil
}

var errUnitOrder = errors.New("unit order")

// checkUnit enforces the ordering invariants a reader relies on.
func checkUnit(u avtype.Unit, next int64) error {
	switch {
	case u.PTS != next:
		return fmt.Errorf("%w: %w: unit %d starts at %d, want %d", avtype.ErrCache, errUnitOrder, u.Index, u.PTS, next)
	case u.Sync < 0 || u.Sync > u.Index:
		return fmt.Errorf("%w: %w: unit %d sync %d", avtype.ErrCache, errUnitOrder, u.Index, u.Sync)
	case u.Offset < 0:
		return fmt.Errorf("%w: unit %d negative offset", avtype.ErrCache, u.Index)
	}
	return nil
}

// i32 narrows track parameters; demuxers reject values that do not fit.
func i32(v int) int32 {
	return int32(v) //nolint:gosec // bounded by demuxer validation
}
