package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestReadCrawlConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.json5")
	writeFile(t, path, `{
		// comments are fine
		forum_url: "https://example.com/forum",
		selectors: { category_item: ".cat" },
		auth: { enabled: true, username: "from-config" },
		parsing: { renderer: "static", headless: false, workers: 4 },
	}`)
	writeFile(t, filepath.Join(dir, "crawl.local.json5"), `{
		parsing: { max_categories: 2 },
	}`)
	t.Setenv("FORUM_PASSWORD", "secret")

	cfg, err := readCrawlConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://example.com/forum", cfg.ForumUrl)
	require.Equal(t, ".cat", cfg.Selectors["category_item"])
	require.Equal(t, "from-config", cfg.Auth.Username)
	require.Equal(t, "secret", cfg.Auth.Password)
	require.Equal(t, RENDERER_STATIC, cfg.Parsing.Renderer)
	require.False(t, *cfg.Parsing.Headless)
	require.Equal(t, 4, cfg.Parsing.Workers)
	require.Equal(t, 2, cfg.Parsing.MaxCategories)

	// defaults
	require.Equal(t, 30, cfg.Parsing.PageLoadTimeoutSec)
	require.Equal(t, "downloads", cfg.Attachments.DownloadDir)
	require.Equal(t, "exports", cfg.Export.OutputDir)
	require.Equal(t, uint64(3), cfg.Attachments.MaxRetries)
}

func TestCrawlConfigDefaults(t *testing.T) {
	cfg := CrawlConfig{}.withDefaults()
	require.Equal(t, RENDERER_CHROME, cfg.Parsing.Renderer)
	require.True(t, *cfg.Parsing.Headless)
	require.Equal(t, 1, cfg.Parsing.Workers)
	require.Equal(t, "exports/forum.checkpoint.json", checkpointPath("exports/forum.json"))
}

func TestReadImportConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "import.json5")
	writeFile(t, path, `{
		discourse_url: "https://discourse.example.com",
		api: { key: "from-config", username: "system" },
		content: { add_disclaimer: true },
		stats: { save_stats: true },
	}`)
	t.Setenv("DISCOURSE_API_KEY", "from-env")

	cfg, err := readImportConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Api.Key)
	require.Equal(t, "system", cfg.Api.Username)
	require.Equal(t, "mapping.db", cfg.Import.MappingDb)
	require.Equal(t, 1000, cfg.Import.DelayBetweenRequestMs)
	require.Contains(t, cfg.Content.DisclaimerText, "{date}")
	require.Equal(t, "import_stats.json", cfg.Stats.StatsFile)

	_, err = readImportConfig(filepath.Join(dir, "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
