package commands

import (
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/components/telemetry"
	"forummigrate/internal/forum"
	"forummigrate/lib/serviceutil"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
)

var (
	scheduleConfig *string
	scheduleCron   *string
	scheduleNow    *bool
	scheduleReuse  *bool
)

func init() {
	scheduleConfig = scheduleCmd.Flags().String("config", "crawl.json5", "The crawl configuration file.")
	scheduleCron = scheduleCmd.Flags().String("cron", "0 3 * * *", "When to crawl, in cron syntax.")
	scheduleNow = scheduleCmd.Flags().Bool("now", false, "Also crawl once immediately.")
	scheduleReuse = scheduleCmd.Flags().Bool("reuse", false, "Reuse post content from the previous crawl of this process.")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--cron <spec>] [--config crawl.json5]",
	Short: "Crawls the forum periodically until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := readCrawlConfig(*scheduleConfig)
		if err != nil {
			serviceutil.Fatal("failed to read crawl config", err)
		}
		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}

		var mutex sync.Mutex
		var last *forum.Snapshot
		job := func() {
			mutex.Lock()
			defer mutex.Unlock()

			var prior *forum.Snapshot
			if *scheduleReuse {
				prior = last
			}
			path, err := crawl(ctx, cfg, prior)
			if err != nil {
				slog.Error("scheduled crawl failed", "err", err, "partial", path)
				return
			}
			slog.Info("scheduled crawl finished", "snapshot", path)

			if *scheduleReuse {
				snap, err := forum.LoadSnapshot(path)
				if err != nil {
					slog.Warn("failed to reload snapshot", "err", err)
					return
				}
				last = &snap
			}
		}

		cron := chrono.NewStandardCron(telemetry.SlogAPI{}, clock.Location())
		err = cron.Cron(*scheduleCron, job)
		if err != nil {
			serviceutil.Fatal("invalid cron spec", err)
		}
		slog.Info("crawl scheduled", "cron", *scheduleCron)

		if *scheduleNow {
			go job()
		}

		<-ctx.Done()
		slog.Info("stopping, waiting for a running crawl")
		<-cron.Stop().Done()
		// an immediate crawl is not owned by the scheduler
		mutex.Lock()
	},
}
