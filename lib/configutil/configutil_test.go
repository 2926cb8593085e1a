package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Url      string   `json:"url"`
	Delay    int      `json:"delay"`
	DryRun   bool     `json:"dry_run"`
	Suffixes []string `json:"suffixes"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.json5")

	err := os.WriteFile(path, []byte(`{
		// comments and trailing commas are allowed
		"url": "https://forum.example.com",
		"delay": 2000,
		"suffixes": [".pdf", ".jpg",],
	}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, testConfig{
		Url:      "https://forum.example.com",
		Delay:    2000,
		Suffixes: []string{".pdf", ".jpg"},
	}, cfg)

	err = os.WriteFile(LocalPath(path), []byte(`{ "delay": 10, "dry_run": true }`), 0644)
	require.NoError(t, err)

	cfg, err = ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://forum.example.com", cfg.Url)
	require.Equal(t, 10, cfg.Delay)
	require.True(t, cfg.DryRun)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nothing.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "config/import.local.json5", LocalPath("config/import.json5"))
	require.Equal(t, "noext.local", LocalPath("noext"))
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("FORUMMIGRATE_TEST_KEY", "secret")
	value := "from-config"
	OverrideFromEnv(&value, "FORUMMIGRATE_TEST_KEY")
	require.Equal(t, "secret", value)

	untouched := "from-config"
	OverrideFromEnv(&untouched, "FORUMMIGRATE_TEST_UNSET")
	require.Equal(t, "from-config", untouched)
}
