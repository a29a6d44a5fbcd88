// Package config loads and saves the geoedit configuration record: the
// remote repository, the local working copy, credentials and the list of
// editable data sources.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus/geoedit/internal/featuretable"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig overrides the configuration file path.
	EnvConfig = "GEOEDIT_CONFIG"
	// EnvToken overrides the stored access token.
	EnvToken = "GEOEDIT_TOKEN"
)

// DataSource is one editable GeoJSON file inside the repository.
type DataSource struct {
	Name    string                   `json:"name" yaml:"name"`
	Path    string                   `json:"path" yaml:"path"`                           // relative to the working copy
	Columns []string                 `json:"columns,omitempty" yaml:"columns,omitempty"` // empty = all properties
	Types   featuretable.ColumnTypes `json:"types,omitempty" yaml:"types,omitempty"`
}

// Config is the configuration record stored at ~/.config/geoedit/config.json.
type Config struct {
	RemoteURL   string       `json:"remote_url" yaml:"remote_url"`
	LocalPath   string       `json:"local_path" yaml:"local_path"`
	Username    string       `json:"username,omitempty" yaml:"username,omitempty"`
	Token       string       `json:"token,omitempty" yaml:"token,omitempty"`
	AuthorName  string       `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	AuthorEmail string       `json:"author_email,omitempty" yaml:"author_email,omitempty"`
	DataSources []DataSource `json:"data_sources" yaml:"data_sources"`
}

// ValidationError lists every problem found in a configuration. It is
// recoverable by editing the configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ConfigDir returns ~/.config/geoedit, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "geoedit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the configuration file path.
// Priority: GEOEDIT_CONFIG env > ~/.config/geoedit/config.json.
func DefaultPath() (string, error) {
	if v := os.Getenv(EnvConfig); v != "" {
		return v, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration at path. A missing file yields an empty
// configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the configuration to path using atomic write (temp file +
// rename). The file is readable by the owner only since it holds a token.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := cfg.marshal(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// Validate reports every missing or inconsistent field as a *ValidationError.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.RemoteURL) == "" {
		problems = append(problems, "remote_url is required")
	}
	if strings.TrimSpace(c.LocalPath) == "" {
		problems = append(problems, "local_path is required")
	}
	if len(c.DataSources) == 0 {
		problems = append(problems, "at least one data source is required")
	}

	seen := make(map[string]bool)
	for i, ds := range c.DataSources {
		label := ds.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			problems = append(problems, fmt.Sprintf("data source %s: name is required", label))
		} else if seen[ds.Name] {
			problems = append(problems, fmt.Sprintf("data source %s: duplicate name", label))
		}
		seen[ds.Name] = true

		switch {
		case ds.Path == "":
			problems = append(problems, fmt.Sprintf("data source %s: path is required", label))
		case !filepath.IsLocal(filepath.FromSlash(ds.Path)):
			problems = append(problems, fmt.Sprintf("data source %s: path %q must stay inside the working copy", label, ds.Path))
		}
		for col, t := range ds.Types {
			if t != featuretable.TypeString && t != featuretable.TypeInt {
				problems = append(problems, fmt.Sprintf("data source %s: column %q has unknown type %q", label, col, t))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Source returns the data source named name.
func (c *Config) Source(name string) (DataSource, bool) {
	for _, ds := range c.DataSources {
		if ds.Name == name {
			return ds, true
		}
	}
	return DataSource{}, false
}

// WorkingCopy returns the local path with a leading ~ expanded.
func (c *Config) WorkingCopy() string {
	p := c.LocalPath
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// FilePath returns the on-disk location of ds inside the working copy.
func (c *Config) FilePath(ds DataSource) string {
	return filepath.Join(c.WorkingCopy(), filepath.FromSlash(ds.Path))
}

// AccessToken returns the token to authenticate with.
// Priority: GEOEDIT_TOKEN env > config.
func (c *Config) AccessToken() string {
	if v := os.Getenv(EnvToken); v != "" {
		return v
	}
	return c.Token
}

// Identity returns the commit author, defaulting to the username and its
// GitHub noreply address.
func (c *Config) Identity() (name, email string) {
	user := c.Username
	if user == "" {
		user = "geoedit"
	}
	name, email = c.AuthorName, c.AuthorEmail
	if name == "" {
		name = user
	}
	if email == "" {
		email = user + "@users.noreply.github.com"
	}
	return name, email
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.DataSources = make([]DataSource, len(c.DataSources))
	for i, ds := range c.DataSources {
		ds.Columns = append([]string(nil), ds.Columns...)
		if ds.Types != nil {
			types := make(featuretable.ColumnTypes, len(ds.Types))
			for k, v := range ds.Types {
				types[k] = v
			}
			ds.Types = types
		}
		out.DataSources[i] = ds
	}
	return &out
}

// Redacted returns the configuration as indented JSON with the token masked.
func (c *Config) Redacted() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	if c.Token == "" {
		return data, nil
	}
	return sjson.SetBytes(data, "token", "********")
}
