package commands

import (
	"errors"
	"forummigrate/internal/components/telemetry"
	scraper "forummigrate/internal/scrapers/forum"
	"forummigrate/lib/serviceutil"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

var analyzeConfig *string

func init() {
	analyzeConfig = analyzeCmd.Flags().String("config", "crawl.json5", "The crawl configuration file, its selectors are probed too.")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url] [--config crawl.json5]",
	Short: "Probes a forum page with candidate selectors to help writing a selector configuration.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readCrawlConfig(*analyzeConfig)
		if errors.Is(err, os.ErrNotExist) && len(args) > 0 {
			cfg = CrawlConfig{}.withDefaults()
		} else if err != nil {
			serviceutil.Fatal("failed to read crawl config", err)
		}

		url := cfg.ForumUrl
		if len(args) > 0 {
			url = args[0]
		}
		if url == "" {
			serviceutil.Fatal("nothing to analyze", errors.New("pass a url or set forum_url"))
		}

		candidates := slices.Clone(scraper.DefaultCandidates)
		for _, name := range slices.Sorted(maps.Keys(cfg.Selectors)) {
			selector := cfg.Selectors[name]
			if selector != "" && !slices.Contains(candidates, selector) {
				candidates = append(candidates, selector)
			}
		}

		source, err := newPageSource(cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to set up renderer", err)
		}
		defer source.Close()

		nav, err := source.Navigator(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open page", err)
		}
		defer nav.Close()

		report, err := scraper.Analyze(cmd.Context(), nav, url, candidates)
		if err != nil {
			serviceutil.Fatal("failed to analyze", err)
		}
		report.Render(os.Stdout)
	},
}
