package avtype

// ProgressEvent represents a progress update during open and indexing.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the source being processed.
	Path string

	// UnitsDone is the number of units indexed so far.
	UnitsDone int64

	// UnitsTotal is the estimated total number of units.
	// Zero indicates the total is unknown.
	UnitsTotal int64
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for opening a source.
const (
	// StageLoadingCache indicates the cache store is being consulted.
	StageLoadingCache ProgressStage = iota

	// StageProbing indicates the container is being identified.
	StageProbing

	// StageIndexing indicates packets are being demuxed and decoded.
	StageIndexing

	// StageSavingCache indicates the finished index is being written.
	StageSavingCache
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageLoadingCache:
		return "loading cache"
	case StageProbing:
		return "probing"
	case StageIndexing:
		return "indexing"
	case StageSavingCache:
		return "saving cache"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during open and indexing.
// It is called from the goroutine doing the work.
type ProgressFunc func(ProgressEvent)
