//go:generate flatc --go --go-namespace fb -o .. ../fb/entry.fbs

// Package index holds the frozen unit table of an indexed track and its
// cache entry encoding.
//
// An Index is built once by the indexer through a Builder and is read-only
// afterwards. The cache entry stores the index as a zstd-compressed
// FlatBuffers record behind a small magic/version header.
package index
