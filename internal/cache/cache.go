// Package cache stores per-file findings on disk, keyed by path and
// validated against a BLAKE3 hash of the file content and the analysis
// configuration.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/panbanda/sieve/pkg/models"
)

// Cache provides file-based caching for analysis results.
type Cache struct {
	dir         string
	ttl         time.Duration
	enabled     bool
	fingerprint string
}

// Entry represents a cached analysis result.
type Entry struct {
	Hash        string           `json:"hash"`
	Fingerprint string           `json:"fingerprint"`
	Timestamp   time.Time        `json:"timestamp"`
	Findings    []models.Finding `json:"findings"`
}

// New creates a new cache instance. fingerprint identifies the analysis
// settings; entries written under another fingerprint are misses.
func New(dir string, ttlHours int, enabled bool, fingerprint string) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:         dir,
		ttl:         time.Duration(ttlHours) * time.Hour,
		enabled:     true,
		fingerprint: fingerprint,
	}, nil
}

// Enabled reports whether the cache reads and writes entries.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint hashes v's JSON form together with version. A value that
// cannot be encoded yields a fingerprint that matches nothing cached.
func Fingerprint(version string, v any) string {
	h := blake3.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	data, err := json.Marshal(v)
	if err != nil {
		h.Write([]byte(err.Error()))
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached findings for path when the entry matches the
// content hash and fingerprint and has not expired.
func (c *Cache) Get(path string, source []byte) ([]models.Finding, bool) {
	if !c.enabled {
		return nil, false
	}

	file := c.keyPath(path)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Hash != HashBytes(source) || entry.Fingerprint != c.fingerprint {
		return nil, false
	}

	// Check TTL
	if time.Since(entry.Timestamp) > c.ttl {
		os.Remove(file)
		return nil, false
	}

	return entry.Findings, true
}

// Put stores the findings of path.
func (c *Cache) Put(path string, source []byte, findings []models.Finding) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Hash:        HashBytes(source),
		Fingerprint: c.fingerprint,
		Timestamp:   time.Now(),
		Findings:    findings,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write then rename so concurrent workers never read a partial entry.
	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(path))
}

// Invalidate removes a cache entry. Removing a missing entry is not an
// error.
func (c *Cache) Invalidate(path string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.keyPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
