package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meigma/avindex/cache"
	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/index"
)

func testIndex(units int) *index.Index {
	b := index.NewBuilder("wav", avtype.Track{
		Kind:           avtype.KindAudio,
		Codec:          "pcm",
		SampleRate:     8000,
		Channels:       1,
		BytesPerSample: 2,
	}, "track=-1 exact=false spu=1024")
	for i := range units {
		b.Append(avtype.Unit{
			PTS:     int64(i) * 1024,
			Offset:  44 + int64(i)*2048,
			Size:    2048,
			Samples: 1024,
			Sync:    int64(i),
			Exact:   true,
			Key:     true,
		})
	}
	return b.Freeze()
}

func testKey(path string) cache.Key {
	return cache.Key{
		Identity: avtype.SourceIdentity{Path: path, Size: 1 << 20, ModTime: 1_700_000_000_000_000_000},
		Track:    "-1",
		Stamp:    "track=-1 exact=false spu=1024",
	}
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStoreSaveLoad(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	key := testKey("/media/a.wav")
	idx := testIndex(12)

	if err := s.Save(context.Background(), key, idx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	hexKey := key.Identity.Key(key.Track).Encoded()
	path := filepath.Join(s.Dir(), hexKey[:defaultShardPrefixLen], hexKey+entryExt)
	if got := s.PathFor(key.Identity, key.Track); got != path {
		t.Fatalf("PathFor() = %s, want %s", got, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}

	got, err := s.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Len() != idx.Len() || got.NumSamples() != idx.NumSamples() || got.Exact() != idx.Exact() {
		t.Fatalf("Load() = %d units / %d samples, want %d / %d", got.Len(), got.NumSamples(), idx.Len(), idx.NumSamples())
	}
	for i := range idx.Len() {
		if got.Unit(i) != idx.Unit(i) {
			t.Fatalf("unit %d = %+v, want %+v", i, got.Unit(i), idx.Unit(i))
		}
	}
	assertNoTemp(t, s.Dir())
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if _, err := s.Load(context.Background(), testKey("/media/none.wav")); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreStale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*cache.Key)
	}{
		{"mtime", func(k *cache.Key) { k.Identity.ModTime++ }},
		{"size", func(k *cache.Key) { k.Identity.Size-- }},
		{"options", func(k *cache.Key) { k.Stamp = "track=-1 exact=true spu=1024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)
			key := testKey("/media/b.wav")
			if err := s.Save(context.Background(), key, testIndex(3)); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			live := key
			tt.mutate(&live)
			if _, err := s.Load(context.Background(), live); !errors.Is(err, cache.ErrStale) {
				t.Fatalf("Load() error = %v, want ErrStale", err)
			}
			if _, err := os.Stat(s.PathFor(key.Identity, key.Track)); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("stale entry still present: %v", err)
			}
			if _, err := s.Load(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
				t.Fatalf("Load() after stale error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	key := testKey("/media/c.wav")
	if err := s.Save(context.Background(), key, testIndex(3)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	path := s.PathFor(key.Identity, key.Track)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)/2], 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := s.Load(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("corrupt entry still present: %v", err)
	}
}

func TestStoreSaveCancelled(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := testKey("/media/d.wav")
	if err := s.Save(ctx, key, testIndex(3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save() error = %v, want context.Canceled", err)
	}
	if _, err := s.Load(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	assertNoTemp(t, s.Dir())
}

func TestStoreSaveRejectsStampMismatch(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	key := testKey("/media/e.wav")
	key.Stamp = "other"
	if err := s.Save(context.Background(), key, testIndex(1)); err == nil {
		t.Fatal("Save() error = nil, want stamp mismatch")
	}
}

func TestStoreLoadTouchesEntry(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	key := testKey("/media/f.wav")
	if err := s.Save(context.Background(), key, testIndex(2)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	path := s.PathFor(key.Identity, key.Track)
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	if _, err := s.Load(context.Background(), key); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.ModTime().After(old.Add(time.Hour)) {
		t.Fatalf("mtime = %v, want refreshed", info.ModTime())
	}
}

func TestStoreEvictLRU(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	now := time.Now()
	var paths []string
	for i, name := range []string{"old", "mid", "new"} {
		key := testKey("/media/" + name + ".wav")
		if err := s.Save(context.Background(), key, testIndex(4)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		path := s.PathFor(key.Identity, key.Track)
		mtime := now.Add(time.Duration(i-3) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
		paths = append(paths, path)
	}

	total, err := s.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	oldest, err := os.Stat(paths[0])
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	stats, err := s.Evict(context.Background(), cache.Policy{MaxBytes: total - oldest.Size()})
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if stats.Removed != 1 || stats.FreedBytes != oldest.Size() {
		t.Fatalf("Evict() = %+v, want one entry of %d bytes", stats, oldest.Size())
	}
	if _, err := os.Stat(paths[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("oldest entry still present: %v", err)
	}
	for _, p := range paths[1:] {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("entry %s evicted: %v", p, err)
		}
	}
}

func TestStoreEvictAgeAndTemp(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	expired := testKey("/media/expired.wav")
	fresh := testKey("/media/fresh.wav")
	for _, key := range []cache.Key{expired, fresh} {
		if err := s.Save(context.Background(), key, testIndex(2)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(s.PathFor(expired.Identity, expired.Track), old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	abandoned := filepath.Join(s.Dir(), tempPrefix+"abandoned")
	active := filepath.Join(s.Dir(), tempPrefix+"active")
	for _, p := range []string{abandoned, active} {
		if err := os.WriteFile(p, []byte("partial"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	if err := os.Chtimes(abandoned, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	unrelated := filepath.Join(s.Dir(), "README")
	if err := os.WriteFile(unrelated, []byte("keep"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	stats, err := s.Evict(context.Background(), cache.Policy{MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if stats.Removed != 1 || stats.TempRemoved != 1 {
		t.Fatalf("Evict() = %+v, want 1 entry and 1 temp file", stats)
	}
	for _, p := range []string{s.PathFor(fresh.Identity, fresh.Track), active, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s removed: %v", p, err)
		}
	}
}

func TestStoreShardDisable(t *testing.T) {
	t.Parallel()

	s := newStore(t, WithShardPrefixLen(0))
	key := testKey("/media/g.wav")
	if err := s.Save(context.Background(), key, testIndex(1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	path := filepath.Join(s.Dir(), key.Identity.Key(key.Track).Encoded()+entryExt)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestStorePathResolver(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "custom.idx")
	s := newStore(t, WithPathResolver(func(avtype.SourceIdentity, string) string { return custom }))
	key := testKey("/media/h.wav")
	if err := s.Save(context.Background(), key, testIndex(1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Fatalf("expected cache file at %s: %v", custom, err)
	}
	if _, err := s.Load(context.Background(), key); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestNewEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() with negative shard length error = nil, want error")
	}
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			t.Errorf("temporary file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
}
