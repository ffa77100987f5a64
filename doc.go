// Package avindex provides exact random access to the decoded samples of
// audio files and the frames of raw video files.
//
// Containers with approximate seek points cannot be read sample-exactly by
// seeking alone. avindex builds a per-unit index of a track once, by
// demultiplexing and where needed decoding the whole file, and persists it
// in a cache keyed by the file's identity. Reads then seek to a recorded
// sync point, decode forward and verify each unit against the hash recorded
// in the index.
//
// Supported containers are WAV (integer and float PCM), MP3 (MPEG-1 and
// MPEG-2 Layer III) and YUV4MPEG2 raw video.
//
// # Quick Start
//
// Open a file and read samples:
//
//	p, err := avindex.Open(ctx, "speech.mp3", avindex.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	props := p.Properties().Audio
//	buf := make([]byte, 4096*p.FrameBytes())
//	err = p.FillBuffer(buf, 0, 4096)
//
// # Caching
//
// Indexes are stored under [DefaultCacheDir] unless Config.CacheDir is set.
// An entry is stale once the file's size or modification time changes or
// the index options differ; stale entries are rebuilt. After every
// successful open the cache is pruned to Config.MaxDiskCacheBytes and
// Config.MaxDiskCacheAge.
//
// Use [WithCacheStore] to supply a different store, or
// [WithCachePathResolver] to choose where entries are written.
//
// # Progress and Cancellation
//
// Index builds run through an [Executor]. The default runs inline; a host
// can supply one that shows a progress dialog and cancels through its
// [ProgressSink]:
//
//	p, err := avindex.Open(ctx, path, cfg,
//	    avindex.WithExecutor(myDialogExecutor),
//	    avindex.WithLogger(slog.Default()),
//	)
//
// A cancelled build returns an error matching [ErrCancelled] and writes no
// cache entry.
package avindex
