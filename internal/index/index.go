package index

import (
	"iter"
	"sort"

	"github.com/meigma/avindex/internal/avtype"
)

// Index is an ordered, immutable table of units for one track.
type Index struct {
	format   string
	track    avtype.Track
	units    []avtype.Unit
	exact    bool
	complete bool
	options  string
}

// Format returns the container format name the index was built from.
func (idx *Index) Format() string {
	return idx.format
}

// Track returns the decoded track description.
func (idx *Index) Track() avtype.Track {
	return idx.track
}

// Options returns the options stamp the index was built with.
func (idx *Index) Options() string {
	return idx.options
}

// Len returns the number of units in the index.
func (idx *Index) Len() int64 {
	return int64(len(idx.units))
}

// Unit returns the unit at position i. It panics if i is out of range.
func (idx *Index) Unit(i int64) avtype.Unit {
	return idx.units[i]
}

// Units returns an iterator over all units in order.
func (idx *Index) Units() iter.Seq[avtype.Unit] {
	return func(yield func(avtype.Unit) bool) {
		for _, u := range idx.units {
			if !yield(u) {
				return
			}
		}
	}
}

// Exact reports whether the total duration is authoritative: every unit is
// exact and the stream was indexed to its end.
func (idx *Index) Exact() bool {
	return idx.exact && idx.complete
}

// Complete reports whether the whole stream was indexed. False when the
// build stopped at corrupt data.
func (idx *Index) Complete() bool {
	return idx.complete
}

// NumSamples returns the total number of samples (audio) or frames (video).
func (idx *Index) NumSamples() int64 {
	if len(idx.units) == 0 {
		return 0
	}
	return idx.units[len(idx.units)-1].End()
}

// Locate returns the index of the unit containing sample (or frame) pos.
// Returns false when pos is outside the track.
func (idx *Index) Locate(pos int64) (int64, bool) {
	if pos < 0 || pos >= idx.NumSamples() {
		return 0, false
	}
	i := sort.Search(len(idx.units), func(i int) bool {
		return idx.units[i].End() > pos
	})
	return int64(i), true
}

// Audio returns the audio properties of the index.
func (idx *Index) Audio() avtype.AudioProperties {
	return avtype.AudioProperties{
		SampleRate:     idx.track.SampleRate,
		Channels:       idx.track.Channels,
		BytesPerSample: idx.track.BytesPerSample,
		Float:          idx.track.Float,
		NumSamples:     idx.NumSamples(),
		NumUnits:       idx.Len(),
		Exact:          idx.Exact(),
	}
}

// Video returns the video properties of the index.
func (idx *Index) Video() avtype.VideoProperties {
	return avtype.VideoProperties{
		Width:       idx.track.Width,
		Height:      idx.track.Height,
		FPSNum:      idx.track.FPSNum,
		FPSDen:      idx.track.FPSDen,
		PixelFormat: idx.track.PixelFormat,
		FrameBytes:  idx.track.FrameBytes,
		NumFrames:   idx.NumSamples(),
		NumUnits:    idx.Len(),
		Exact:       idx.Exact(),
	}
}

// Builder accumulates units during an index build. Units are append-only;
// Freeze hands out the finished Index and ends the builder's life.
type Builder struct {
	idx    *Index
	frozen bool
}

// NewBuilder starts an index for the given container format and track.
func NewBuilder(format string, track avtype.Track, options string) *Builder {
	return &Builder{idx: &Index{
		format:   format,
		track:    track,
		options:  options,
		exact:    true,
		complete: true,
	}}
}

// Append adds a unit. Index is assigned from the current length.
func (b *Builder) Append(u avtype.Unit) avtype.Unit {
	if b.frozen {
		panic("index: append after freeze")
	}
	u.Index = int64(len(b.idx.units))
	if !u.Exact {
		b.idx.exact = false
	}
	b.idx.units = append(b.idx.units, u)
	return u
}

// SetHash records the payload hash of unit i.
func (b *Builder) SetHash(i int64, h uint64) {
	b.idx.units[i].Hash = h
}

// Len returns the number of units appended so far.
func (b *Builder) Len() int64 {
	return int64(len(b.idx.units))
}

// Truncated marks the index as incomplete.
func (b *Builder) Truncated() {
	b.idx.complete = false
}

// Freeze returns the finished index. The builder must not be used again.
func (b *Builder) Freeze() *Index {
	b.frozen = true
	if len(b.idx.units) == 0 {
		b.idx.exact = false
	}
	return b.idx
}
