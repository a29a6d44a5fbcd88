package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFile = "version_cache.json"
	cacheTTL  = 6 * time.Hour
)

// CacheEntry is the last successful release lookup.
type CacheEntry struct {
	LatestVersion  string    `json:"latest_version"`
	CurrentVersion string    `json:"current_version"`
	CheckedAt      time.Time `json:"checked_at"`
	HasUpdate      bool      `json:"has_update"`
}

// IsCacheValid reports whether entry was produced for currentVersion less
// than cacheTTL before now.
func IsCacheValid(entry *CacheEntry, currentVersion string, now time.Time) bool {
	if entry == nil || entry.CurrentVersion != currentVersion {
		return false
	}
	return now.Sub(entry.CheckedAt) < cacheTTL
}

// LoadCache reads the cache entry stored in dir.
func LoadCache(dir string) (*CacheEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache writes entry to dir, creating the directory if needed.
func SaveCache(dir string, entry *CacheEntry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0644)
}
