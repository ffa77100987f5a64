package avindex

import "github.com/meigma/avindex/internal/avtype"

// Re-export progress types from avtype.
type (
	// ProgressEvent represents a progress update during Open.
	ProgressEvent = avtype.ProgressEvent

	// ProgressStage identifies the current phase of Open.
	ProgressStage = avtype.ProgressStage

	// ProgressFunc receives progress updates during Open.
	ProgressFunc = avtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageLoadingCache indicates the cache store is being consulted.
	StageLoadingCache = avtype.StageLoadingCache

	// StageProbing indicates the container is being identified.
	StageProbing = avtype.StageProbing

	// StageIndexing indicates packets are being demuxed and decoded.
	StageIndexing = avtype.StageIndexing

	// StageSavingCache indicates the finished index is being written.
	StageSavingCache = avtype.StageSavingCache
)
