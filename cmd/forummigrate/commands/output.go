package commands

import (
	"forummigrate/internal/forum"
	"maps"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
)

// printCounters renders counters as a table, keys in order come first and the
// rest follow sorted.
func printCounters(title string, counters map[string]int64, order []string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("%s", title)
	t.AppendHeader(table.Row{"Counter", "Value"})

	seen := map[string]bool{}
	for _, key := range order {
		seen[key] = true
		t.AppendRow(table.Row{key, counters[key]})
	}
	for _, key := range slices.Sorted(maps.Keys(counters)) {
		if seen[key] {
			continue
		}
		t.AppendRow(table.Row{key, counters[key]})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printFailures(failures []forum.Failure) {
	if len(failures) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Failures (%d)", len(failures))
	t.AppendHeader(table.Row{"Kind", "ID", "Reason"})
	for _, f := range failures {
		t.AppendRow(table.Row{f.Kind, f.ID, f.Reason})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
