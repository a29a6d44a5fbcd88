package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/marcus/geoedit/internal/featuretable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sampleConfig() *Config {
	return &Config{
		RemoteURL: "https://github.com/ville/cantines-data",
		LocalPath: "/srv/cantines",
		Username:  "ana",
		Token:     "ghp_secret",
		DataSources: []DataSource{
			{Name: "Cantines", Path: "data/cantines.geojson", Columns: []string{"nom", "capacite"}, Types: featuretable.ColumnTypes{"capacite": featuretable.TypeInt}},
			{Name: "Écoles", Path: "data/ecoles.geojson"},
		},
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := sampleConfig()
			require.NoError(t, Save(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			if runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			}
		})
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, "config.json"), sampleConfig()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`remote_url: github.com/ville/data
local_path: ~/cantines
data_sources:
  - name: Cantines
    path: cantines.geojson
    types:
      capacite: int
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	ds, ok := cfg.Source("Cantines")
	require.True(t, ok)
	assert.Equal(t, featuretable.TypeInt, ds.Types.Of("capacite"))
	assert.Empty(t, ds.Columns)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfig, "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "geoedit", "config.json"), p)
	assert.DirExists(t, filepath.Join(home, ".config", "geoedit"))

	t.Setenv(EnvConfig, "/etc/geoedit.yaml")
	p, err = DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/geoedit.yaml", p)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleConfig().Validate())

	err := (&Config{}).Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"remote_url is required",
		"local_path is required",
		"at least one data source is required",
	}, verr.Problems)

	cfg := sampleConfig()
	cfg.DataSources = append(cfg.DataSources,
		DataSource{Name: "Cantines", Path: "../escape.geojson"},
		DataSource{Path: ""},
		DataSource{Name: "Typed", Path: "t.geojson", Types: featuretable.ColumnTypes{"n": "float"}},
	)
	err = cfg.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"data source Cantines: duplicate name",
		`data source Cantines: path "../escape.geojson" must stay inside the working copy`,
		"data source #4: name is required",
		"data source #4: path is required",
		`data source Typed: column "n" has unknown type "float"`,
	}, verr.Problems)
}

func TestSourceLookup(t *testing.T) {
	cfg := sampleConfig()
	ds, ok := cfg.Source("Écoles")
	require.True(t, ok)
	assert.Equal(t, "data/ecoles.geojson", ds.Path)
	assert.Equal(t, filepath.Join("/srv/cantines", "data", "ecoles.geojson"), cfg.FilePath(ds))

	_, ok = cfg.Source("missing")
	assert.False(t, ok)
}

func TestWorkingCopyExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg := &Config{LocalPath: "~/data"}
	assert.Equal(t, filepath.Join(home, "data"), cfg.WorkingCopy())

	cfg.LocalPath = "/abs/data"
	assert.Equal(t, "/abs/data", cfg.WorkingCopy())
}

func TestAccessTokenEnvOverride(t *testing.T) {
	cfg := sampleConfig()
	t.Setenv(EnvToken, "")
	assert.Equal(t, "ghp_secret", cfg.AccessToken())

	t.Setenv(EnvToken, "from-env")
	assert.Equal(t, "from-env", cfg.AccessToken())
}

func TestIdentity(t *testing.T) {
	name, email := (&Config{Username: "ana"}).Identity()
	assert.Equal(t, "ana", name)
	assert.Equal(t, "ana@users.noreply.github.com", email)

	name, email = (&Config{}).Identity()
	assert.Equal(t, "geoedit", name)
	assert.Equal(t, "geoedit@users.noreply.github.com", email)

	name, email = (&Config{Username: "ana", AuthorName: "Ana Lopez", AuthorEmail: "ana@ville.fr"}).Identity()
	assert.Equal(t, "Ana Lopez", name)
	assert.Equal(t, "ana@ville.fr", email)
}

func TestRedacted(t *testing.T) {
	data, err := sampleConfig().Redacted()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_secret")
	assert.Equal(t, "********", gjson.GetBytes(data, "token").String())
	assert.Equal(t, "ana", gjson.GetBytes(data, "username").String())

	cfg := sampleConfig()
	cfg.Token = ""
	data, err = cfg.Redacted()
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "token").Exists())
}

func TestCloneIsDeep(t *testing.T) {
	cfg := sampleConfig()
	c := cfg.Clone()
	c.DataSources[0].Columns[0] = "changed"
	c.DataSources[0].Types["capacite"] = featuretable.TypeString
	c.DataSources = append(c.DataSources, DataSource{Name: "x"})

	assert.Equal(t, "nom", cfg.DataSources[0].Columns[0])
	assert.Equal(t, featuretable.TypeInt, cfg.DataSources[0].Types["capacite"])
	assert.Len(t, cfg.DataSources, 2)
}
