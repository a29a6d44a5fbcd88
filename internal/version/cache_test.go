package version

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsCacheValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		entry          *CacheEntry
		currentVersion string
		want           bool
	}{
		{"nil entry", nil, "v1.0.0", false},
		{
			name:           "same version, recent",
			entry:          &CacheEntry{LatestVersion: "v1.1.0", CurrentVersion: "v1.0.0", CheckedAt: now.Add(-time.Hour)},
			currentVersion: "v1.0.0",
			want:           true,
		},
		{
			name:           "same version, expired",
			entry:          &CacheEntry{LatestVersion: "v1.1.0", CurrentVersion: "v1.0.0", CheckedAt: now.Add(-7 * time.Hour)},
			currentVersion: "v1.0.0",
			want:           false,
		},
		{
			name:           "binary upgraded since",
			entry:          &CacheEntry{LatestVersion: "v1.1.0", CurrentVersion: "v1.0.0", CheckedAt: now},
			currentVersion: "v1.1.0",
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCacheValid(tt.entry, tt.currentVersion, now); got != tt.want {
				t.Errorf("IsCacheValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaveAndLoadCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "geoedit")
	entry := &CacheEntry{
		LatestVersion:  "v1.2.0",
		CurrentVersion: "v1.1.0",
		CheckedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		HasUpdate:      true,
	}
	if err := SaveCache(dir, entry); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	got, err := LoadCache(dir)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if got.LatestVersion != entry.LatestVersion || got.CurrentVersion != entry.CurrentVersion ||
		!got.CheckedAt.Equal(entry.CheckedAt) || got.HasUpdate != entry.HasUpdate {
		t.Errorf("LoadCache = %+v, want %+v", got, entry)
	}
}

func TestLoadCacheErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadCache(dir); err == nil {
		t.Error("expected error for a missing cache file")
	}

	if err := os.WriteFile(filepath.Join(dir, cacheFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCache(dir); err == nil {
		t.Error("expected error for a corrupt cache file")
	}
}
