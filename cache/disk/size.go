package disk

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/meigma/avindex/cache"
)

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

type pruneRules struct {
	maxBytes int64
	maxAge   time.Duration
	tempTTL  time.Duration
	now      time.Time
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

func pruneDir(ctx context.Context, root string, rules pruneRules) (cache.EvictStats, error) {
	var stats cache.EvictStats
	entries := make([]cacheEntry, 0)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries removed concurrently by another process are fine.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if !isEntry(name) && !isTemp(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		age := rules.now.Sub(info.ModTime())
		switch {
		case isTemp(name):
			if age > rules.tempTTL && removeFile(path) {
				stats.TempRemoved++
				stats.FreedBytes += info.Size()
			}
			return nil
		case rules.maxAge > 0 && age > rules.maxAge:
			if removeFile(path) {
				stats.Removed++
				stats.FreedBytes += info.Size()
			}
			return nil
		}
		entries = append(entries, cacheEntry{
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		stats.RemainingBytes += info.Size()
		return nil
	})
	if errors.Is(walkErr, os.ErrNotExist) {
		return stats, nil
	}
	if walkErr != nil {
		return stats, walkErr
	}

	if rules.maxBytes <= 0 || stats.RemainingBytes <= rules.maxBytes {
		return stats, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path < entries[j].path
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	for _, entry := range entries {
		if stats.RemainingBytes <= rules.maxBytes {
			break
		}
		if err := os.Remove(entry.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				stats.RemainingBytes -= entry.size
				continue
			}
			return stats, err
		}
		stats.Removed++
		stats.RemainingBytes -= entry.size
		stats.FreedBytes += entry.size
	}
	return stats, nil
}

func removeFile(path string) bool {
	err := os.Remove(path)
	return err == nil || errors.Is(err, os.ErrNotExist)
}
