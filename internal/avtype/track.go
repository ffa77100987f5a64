// Package avtype defines shared types used across the avindex package and its
// internal packages. This avoids circular imports between avindex, the
// indexer, the source and the cache store.
package avtype

import "fmt"

// Kind identifies the media type of a track.
type Kind uint8

const (
	KindAudio Kind = iota
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Track describes one elementary stream as decoded.
//
// Audio fields are zero for video tracks and vice versa. Once an index is
// built the values reflect what the decoder produces, not what the container
// header claimed.
type Track struct {
	// ID is the track number within the container (0-based).
	ID int

	// Kind is the media type.
	Kind Kind

	// Codec names the bitstream format ("pcm", "mp3", "rawvideo").
	Codec string

	SampleRate     int
	Channels       int
	BytesPerSample int
	Float          bool

	Width       int
	Height      int
	FPSNum      int
	FPSDen      int
	PixelFormat string
	FrameBytes  int
}

// FrameSize returns the size in bytes of one decoded sample frame (all
// channels) for audio or one picture for video.
func (t Track) FrameSize() int {
	if t.Kind == KindVideo {
		return t.FrameBytes
	}
	return t.Channels * t.BytesPerSample
}

func (t Track) String() string {
	if t.Kind == KindVideo {
		return fmt.Sprintf("#%d %s %s %dx%d %s %d/%d fps", t.ID, t.Kind, t.Codec, t.Width, t.Height, t.PixelFormat, t.FPSNum, t.FPSDen)
	}
	kind := "int"
	if t.Float {
		kind = "float"
	}
	return fmt.Sprintf("#%d %s %s %d Hz %d ch %d-bit %s", t.ID, t.Kind, t.Codec, t.SampleRate, t.Channels, t.BytesPerSample*8, kind)
}
