package avindex

import (
	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/cache/disk"
	"github.com/meigma/avindex/internal/avtype"
)

// --- Re-exports from avtype ---

// Kind identifies the media type of a track.
type Kind = avtype.Kind

// Track describes the decoded stream a Provider serves.
type Track = avtype.Track

// SourceIdentity identifies a source file for cache lookups.
type SourceIdentity = avtype.SourceIdentity

// AudioProperties is the read-only view of an audio track.
type AudioProperties = avtype.AudioProperties

// VideoProperties is the read-only view of a video track.
type VideoProperties = avtype.VideoProperties

// Kind constants.
const (
	KindAudio = avtype.KindAudio
	KindVideo = avtype.KindVideo
)

// --- Re-exports from cache ---

// CacheStore loads and saves built indexes.
type CacheStore = cache.Store

// CacheKey identifies a cache entry.
type CacheKey = cache.Key

// CachePolicy controls eviction of cache entries.
type CachePolicy = cache.Policy

// CachePathResolver maps a source identity and track selector to the path
// of its cache entry.
type CachePathResolver = disk.PathResolver

// Properties is a snapshot of what a Provider serves.
type Properties struct {
	// Format is the container format name.
	Format string

	// Track is the decoded track.
	Track Track

	// Audio is set for audio tracks.
	Audio AudioProperties

	// Video is set for video tracks.
	Video VideoProperties

	// DecodedSamples is the number of samples the host may treat as already
	// decoded. It equals the track length unless the host keeps its own
	// cache, in which case it is zero.
	DecodedSamples int64

	// Complete is false when indexing stopped at corrupt data and the
	// track was truncated.
	Complete bool
}
