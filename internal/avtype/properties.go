package avtype

// AudioProperties is the read-only view of an audio index.
type AudioProperties struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
	Float          bool

	// NumSamples is the total number of sample frames in the track.
	NumSamples int64

	// NumUnits is the number of indexed units.
	NumUnits int64

	// Exact reports whether NumSamples is authoritative rather than
	// estimated from container headers.
	Exact bool
}

// VideoProperties is the read-only view of a video index.
type VideoProperties struct {
	Width       int
	Height      int
	FPSNum      int
	FPSDen      int
	PixelFormat string
	FrameBytes  int

	// NumFrames is the total number of frames in the track.
	NumFrames int64

	// NumUnits is the number of indexed units.
	NumUnits int64

	// Exact reports whether NumFrames is authoritative.
	Exact bool
}
