package commands

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/components/telemetry"
	"forummigrate/internal/db"
	"forummigrate/internal/discourse"
	"forummigrate/internal/forum"
	"forummigrate/internal/publisher"
	"forummigrate/lib/serviceutil"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	importConfig *string
	importDryRun *bool
)

func init() {
	importConfig = importCmd.Flags().String("config", "import.json5", "The import configuration file.")
	importDryRun = importCmd.Flags().Bool("dry-run", false, "Walk the snapshot without calling Discourse or recording anything.")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <snapshot> [--config import.json5] [--dry-run]",
	Short: "Imports a snapshot into Discourse.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readImportConfig(*importConfig)
		if err != nil {
			serviceutil.Fatal("failed to read import config", err)
		}
		if *importDryRun {
			cfg.Import.DryRun = true
		}

		snap, err := forum.LoadSnapshot(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read snapshot", err)
		}
		if !snap.Complete {
			slog.Warn("snapshot is incomplete, importing what it holds", "path", args[0])
		}
		printCounters("Snapshot", snap.Totals(), forum.TotalKeys)

		report, err := runImport(cmd.Context(), cfg, args[0], snap)
		printCounters("Import", report.Stats, publisher.ImportStatKeys)
		printFailures(report.Failures)
		if err != nil {
			serviceutil.Fatal("import failed", err)
		}
		slog.Info("import finished", "run", report.RunID, "dry_run", report.DryRun)
	},
}

// openStores returns the mapping store of an import. A dry run records into
// memory and only reads the mapping database, when there is one.
func openStores(cfg ImportConfig, clock chrono.API) (publisher.MappingStore, func(), error) {
	path := cfg.Import.MappingDb

	if cfg.Import.DryRun {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return publisher.NewMemoryStore(nil), func() {}, nil
		}
		if err != nil {
			return nil, nil, err
		}

		database, err := db.OpenReadOnly(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open mapping db: %w", err)
		}
		parent := publisher.NewSqliteStore(database, clock)
		return publisher.NewMemoryStore(parent), func() { database.Close() }, nil
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open mapping db: %w", err)
	}
	return publisher.NewSqliteStore(database, clock), func() { database.Close() }, nil
}

func openDestination(ctx context.Context, cfg ImportConfig, tel telemetry.API) (discourse.API, error) {
	if cfg.Import.DryRun {
		return discourse.NewDryRun(tel), nil
	}
	if cfg.DiscourseUrl == "" || cfg.Api.Key == "" {
		return nil, fmt.Errorf("discourse_url and api.key (or DISCOURSE_API_KEY) are required")
	}

	client := discourse.NewClient(discourse.ClientOptions{
		BaseUrl:     cfg.DiscourseUrl,
		ApiKey:      cfg.Api.Key,
		ApiUsername: cfg.Api.Username,
		MaxRetries:  cfg.Import.MaxRetries,
	}, tel)
	err := client.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("reach discourse: %w", err)
	}
	return client, nil
}

func runImport(ctx context.Context, cfg ImportConfig, snapshotPath string, snap forum.Snapshot) (publisher.Report, error) {
	tel := telemetry.SlogAPI{}
	clock, err := chrono.NewStandardImpl("")
	if err != nil {
		return publisher.Report{}, err
	}

	store, closeStore, err := openStores(cfg, clock)
	if err != nil {
		return publisher.Report{}, err
	}
	defer closeStore()

	api, err := openDestination(ctx, cfg, tel)
	if err != nil {
		return publisher.Report{}, err
	}

	pub := publisher.NewPublisher(publisher.Options{
		DryRun:            cfg.Import.DryRun,
		Delay:             time.Duration(cfg.Import.DelayBetweenRequestMs) * time.Millisecond,
		ConvertToMarkdown: cfg.Content.ConvertToMarkdown,
		PreserveDates:     cfg.Content.PreserveDates,
		AddDisclaimer:     cfg.Content.AddDisclaimer,
		DisclaimerText:    cfg.Content.DisclaimerText,
		UploadAttachments: cfg.Attachments.UploadAttachments,
		MaxFileSizeMB:     cfg.Attachments.MaxFileSizeMB,
		SnapshotPath:      snapshotPath,
		DiscourseUrl:      cfg.DiscourseUrl,
	}, api, store, clock, tel)

	slog.Info("importing", "snapshot", snapshotPath, "discourse", cfg.DiscourseUrl, "dry_run", cfg.Import.DryRun)
	report, runErr := pub.Run(ctx, snap)

	if cfg.Stats.SaveStats {
		err = publisher.WriteStatsFile(cfg.Stats.StatsFile, publisher.NewStatsFile(report, cfg.DiscourseUrl, clock.Now()))
		if err != nil {
			slog.Warn("failed to write stats file", "path", cfg.Stats.StatsFile, "err", err)
		}
	}
	return report, runErr
}
