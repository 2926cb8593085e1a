package commands

import (
	"context"
	"fmt"
	"forummigrate/internal/attachments"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/components/telemetry"
	"forummigrate/internal/forum"
	scraper "forummigrate/internal/scrapers/forum"
	"forummigrate/lib/serviceutil"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	crawlConfig *string
	crawlResume *string
)

func init() {
	crawlConfig = crawlCmd.Flags().String("config", "crawl.json5", "The crawl configuration file.")
	crawlResume = crawlCmd.Flags().String("resume", "", "A previous snapshot, posts it already holds are not fetched again.")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--config crawl.json5] [--resume <snapshot>]",
	Short: "Crawls the forum into a json snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readCrawlConfig(*crawlConfig)
		if err != nil {
			serviceutil.Fatal("failed to read crawl config", err)
		}

		var prior *forum.Snapshot
		if *crawlResume != "" {
			snap, err := forum.LoadSnapshot(*crawlResume)
			if err != nil {
				serviceutil.Fatal("failed to read snapshot to resume", err)
			}
			prior = &snap
		}

		path, err := crawl(cmd.Context(), cfg, prior)
		if err != nil {
			if path != "" {
				slog.Warn("crawl did not finish, partial snapshot written", "path", path)
			}
			serviceutil.Fatal("crawl failed", err)
		}
		slog.Info("crawl finished", "snapshot", path)
	},
}

func checkpointPath(snapshotPath string) string {
	return strings.TrimSuffix(snapshotPath, ".json") + ".checkpoint.json"
}

// crawl runs one crawl and writes its snapshot. When the crawl is cut short
// the partial snapshot is still written and its path returned with the error.
func crawl(ctx context.Context, cfg CrawlConfig, prior *forum.Snapshot) (string, error) {
	if cfg.ForumUrl == "" {
		return "", fmt.Errorf("forum_url is not configured")
	}

	tel := telemetry.SlogAPI{}
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return "", fmt.Errorf("load timezone: %w", err)
	}
	outPath := forum.SnapshotPath(cfg.Export.OutputDir, clock.Now())

	source, err := newPageSource(cfg, tel)
	if err != nil {
		return "", err
	}
	defer source.Close()

	nav, err := source.Navigator(ctx)
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer nav.Close()

	fetcher := attachments.NewFetcher(attachments.Options{
		Dir:               cfg.Attachments.DownloadDir,
		AllowedExtensions: cfg.Attachments.AllowedExtensions,
		MaxFileSizeMB:     cfg.Attachments.MaxFileSizeMB,
		MaxRetries:        cfg.Attachments.MaxRetries,
		UserAgent:         cfg.Parsing.UserAgent,
	}, tel)

	var login *scraper.Credentials
	if cfg.Auth.Enabled {
		login = &scraper.Credentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		}
	}

	extractor := scraper.NewExtractor(scraper.Options{
		ForumUrl:               cfg.ForumUrl,
		Selectors:              scraper.Selectors(cfg.Selectors),
		MaxCategories:          cfg.Parsing.MaxCategories,
		MaxPostsPerSubcategory: cfg.Parsing.MaxPostsPerSubcategory,
		MaxCommentsPerPost:     cfg.Parsing.MaxCommentsPerPost,
		MaxLoadMoreRounds:      cfg.Parsing.MaxLoadMoreRounds,
		Workers:                cfg.Parsing.Workers,
		Login:                  login,
		CheckpointPath:         checkpointPath(outPath),
		Prior:                  prior,
	}, nav, source.Navigator, fetcher, clock, tel)

	slog.Info("crawling", "forum", cfg.ForumUrl, "renderer", cfg.Parsing.Renderer, "workers", cfg.Parsing.Workers)
	snap, runErr := extractor.Run(ctx)
	if runErr != nil && len(snap.Categories) == 0 {
		return "", runErr
	}

	err = forum.SaveSnapshot(outPath, snap)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if runErr != nil {
		return outPath, runErr
	}
	os.Remove(checkpointPath(outPath))

	counts := fetcher.Counts()
	printCounters("Crawl", snap.Stats, forum.CrawlStatKeys)
	printCounters("Attachment transfers", map[string]int64{
		"downloaded": counts.Downloaded,
		"cached":     counts.Cached,
		"failed":     counts.Failed,
		"skipped":    counts.Skipped,
	}, []string{"downloaded", "cached", "failed", "skipped"})
	printFailures(snap.Failures)

	return outPath, nil
}
