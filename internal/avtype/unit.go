package avtype

// Unit is one addressable item of an index: an audio sample block or a video
// frame.
type Unit struct {
	// Index is the position of the unit within the index.
	Index int64

	// PTS is the first sample (audio) or frame number (video) covered by
	// the unit, counted from the start of the track.
	PTS int64

	// Offset is the byte offset of the unit's packet in the source file.
	Offset int64

	// Size is the packet size in bytes.
	Size uint32

	// Samples is the number of decoded samples in the unit. Always 1 for
	// video.
	Samples uint32

	// Sync is the index of the earliest unit decoding has to start from to
	// reproduce this unit. Equal to Index for self-contained units.
	Sync int64

	// Exact reports whether PTS and Samples were confirmed by the decoder
	// or guaranteed by the container, rather than estimated.
	Exact bool

	// Key reports whether the packet is a container sync point.
	Key bool

	// Hash is the xxhash64 of the decoded payload, or 0 when the unit was
	// indexed without decoding.
	Hash uint64
}

// End returns the sample (or frame) position immediately after the unit.
func (u Unit) End() int64 {
	return u.PTS + int64(u.Samples)
}
