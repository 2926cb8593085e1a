package commands

import (
	"fmt"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/db"
	"forummigrate/internal/forum"
	"forummigrate/internal/publisher"
	"forummigrate/lib/serviceutil"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	mappingDb      *string
	mappingKind    *string
	mappingRuns    *bool
	mappingFailed  *string
	mappingMergeDb *string
)

func init() {
	mappingDb = mappingCmd.PersistentFlags().String("db", "mapping.db", "The mapping database.")

	mappingKind = mappingListCmd.Flags().String("kind", "", "Only list mappings of this kind (category, subcategory, post, comment).")
	mappingRuns = mappingListCmd.Flags().Bool("runs", false, "List import runs instead of mappings.")
	mappingFailed = mappingListCmd.Flags().String("failures", "", "List the failures recorded by this import run instead of mappings.")
	mappingCmd.AddCommand(mappingListCmd)

	mappingMergeDb = mappingMergeCmd.Flags().String("from", "", "The mapping database to copy mappings from.")
	mappingMergeCmd.MarkFlagRequired("from")
	mappingCmd.AddCommand(mappingMergeCmd)

	rootCmd.AddCommand(mappingCmd)
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspects the record of what previous imports created.",
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).Format(time.DateTime)
}

func printRuns(runs []db.ImportRun) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Started", "Finished", "Dry run", "Snapshot", "Discourse"})
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt.Valid {
			finished = formatUnix(run.FinishedAt.Int64)
		}
		t.AppendRow(table.Row{run.ID, formatUnix(run.StartedAt), finished, run.DryRun, run.SnapshotPath, run.DiscourseUrl})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var mappingListCmd = &cobra.Command{
	Use:   "list [--db mapping.db] [--kind <kind>] [--runs | --failures <run>]",
	Short: "Lists recorded mappings, import runs or the failures of a run.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := db.Open(*mappingDb)
		if err != nil {
			serviceutil.Fatal("failed to open mapping db", err)
		}
		defer database.Close()
		qry := db.New(database)
		ctx := cmd.Context()

		if *mappingRuns {
			runs, err := qry.ListImportRuns(ctx)
			if err != nil {
				serviceutil.Fatal("failed to list runs", err)
			}
			printRuns(runs)
			return
		}

		if *mappingFailed != "" {
			rows, err := qry.ListImportFailures(ctx, *mappingFailed)
			if err != nil {
				serviceutil.Fatal("failed to list failures", err)
			}
			failures := make([]forum.Failure, 0, len(rows))
			for _, row := range rows {
				if *mappingKind != "" && row.Kind != *mappingKind {
					continue
				}
				failures = append(failures, forum.Failure{
					Kind:   forum.Kind(row.Kind),
					ID:     row.EntityID,
					Reason: row.Reason,
				})
			}
			if len(failures) == 0 {
				fmt.Printf("no failures recorded for run %s\n", *mappingFailed)
				return
			}
			printFailures(failures)
			return
		}

		mappings, err := qry.ListMappings(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list mappings", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Source key", "Destination id", "Run", "Created"})
		for _, m := range mappings {
			if *mappingKind != "" && m.Kind != *mappingKind {
				continue
			}
			t.AppendRow(table.Row{m.Kind, m.SourceKey, m.DestinationID, m.RunID, formatUnix(m.CreatedAt)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		counts, err := qry.CountMappingsByKind(ctx)
		if err != nil {
			serviceutil.Fatal("failed to count mappings", err)
		}
		byKind := map[string]int64{}
		for _, row := range counts {
			byKind[row.Kind] = row.Count
		}
		printCounters("Mappings", byKind, nil)
	},
}

var mappingMergeCmd = &cobra.Command{
	Use:   "merge --from <other.db> [--db mapping.db]",
	Short: "Copies the mappings of another mapping database into this one.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		source, err := db.Open(*mappingMergeDb)
		if err != nil {
			serviceutil.Fatal("failed to open source mapping db", err)
		}
		defer source.Close()
		rows, err := db.New(source).ListMappings(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list source mappings", err)
		}

		mappings := make([]publisher.Mapping, len(rows))
		for i, row := range rows {
			mappings[i] = publisher.Mapping{
				Kind:          forum.Kind(row.Kind),
				SourceKey:     row.SourceKey,
				DestinationID: row.DestinationID,
			}
		}

		target, err := db.Open(*mappingDb)
		if err != nil {
			serviceutil.Fatal("failed to open mapping db", err)
		}
		defer target.Close()
		clock, err := chrono.NewStandardImpl("")
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}

		store := publisher.NewSqliteStore(target, clock)
		err = store.ImportMappings(ctx, publisher.RunInfo{
			ID:           uuid.NewString(),
			SnapshotPath: fmt.Sprintf("merge:%s", *mappingMergeDb),
		}, mappings)
		if err != nil {
			serviceutil.Fatal("failed to merge mappings", err)
		}
		fmt.Printf("merged %d mappings from %s into %s\n", len(mappings), *mappingMergeDb, *mappingDb)
	},
}
