// Package version provides update checking against GitHub releases and
// semantic version comparison.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultReleasesURL is the GitHub endpoint for the latest geoedit release.
const DefaultReleasesURL = "https://api.github.com/repos/marcus/geoedit/releases/latest"

// Release represents a GitHub release response.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// CheckResult holds the result of a version check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Cached         bool
	Error          error
}

// Checker looks up the latest release, caching the answer in CacheDir.
type Checker struct {
	URL      string
	Client   *http.Client
	CacheDir string // empty disables the cache
	Now      func() time.Time
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Check compares currentVersion with the latest release. Development builds
// are never reported as outdated and never reach the network.
func (c *Checker) Check(ctx context.Context, currentVersion string) CheckResult {
	result := CheckResult{CurrentVersion: currentVersion}
	if IsDevelopmentVersion(currentVersion) {
		return result
	}

	if c.CacheDir != "" {
		if cached, err := LoadCache(c.CacheDir); err == nil && IsCacheValid(cached, currentVersion, c.now()) {
			result.LatestVersion = cached.LatestVersion
			result.HasUpdate = cached.HasUpdate
			result.Cached = true
			return result
		}
	}

	release, err := c.fetch(ctx)
	if err != nil {
		result.Error = err
		return result
	}
	result.LatestVersion = release.TagName
	result.UpdateURL = release.HTMLURL
	result.HasUpdate = isNewer(release.TagName, currentVersion)

	// Only successful checks are cached.
	if c.CacheDir != "" {
		_ = SaveCache(c.CacheDir, &CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      c.now(),
			HasUpdate:      result.HasUpdate,
		})
	}
	return result
}

func (c *Checker) fetch(ctx context.Context) (*Release, error) {
	url := c.URL
	if url == "" {
		url = DefaultReleasesURL
	}
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api: %s", resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("github api: release without tag")
	}
	return &release, nil
}

// IsDevelopmentVersion returns true for non-release versions.
func IsDevelopmentVersion(v string) bool {
	if v == "" || v == "unknown" || v == "dev" || v == "devel" {
		return true
	}
	return strings.HasPrefix(v, "devel+") || strings.HasPrefix(v, "(devel")
}

// validVersionRegex matches valid semver versions (v1.2.3, v1.2.3-beta, etc.)
var validVersionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+([.-][a-zA-Z0-9]+)*)?$`)

// UpdateCommand generates the go install command for updating.
// Returns empty string if version is invalid.
func UpdateCommand(version string) string {
	if !validVersionRegex.MatchString(version) {
		return ""
	}
	return fmt.Sprintf(
		"go install -ldflags \"-X main.Version=%s\" github.com/marcus/geoedit@%s",
		version, version,
	)
}
