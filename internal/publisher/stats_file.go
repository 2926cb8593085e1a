package publisher

import (
	"encoding/json"
	"forummigrate/internal/forum"
	"os"
	"path/filepath"
	"time"
)

// StatsFile is the summary written after an import.
type StatsFile struct {
	ImportDate   time.Time        `json:"import_date"`
	DiscourseUrl string           `json:"discourse_url"`
	RunID        string           `json:"run_id"`
	DryRun       bool             `json:"dry_run"`
	Statistics   map[string]int64 `json:"statistics"`
	Failures     []forum.Failure  `json:"failures"`
}

func NewStatsFile(report Report, discourseUrl string, importDate time.Time) StatsFile {
	failures := report.Failures
	if failures == nil {
		failures = []forum.Failure{}
	}
	return StatsFile{
		ImportDate:   importDate,
		DiscourseUrl: discourseUrl,
		RunID:        report.RunID,
		DryRun:       report.DryRun,
		Statistics:   report.Stats,
		Failures:     failures,
	}
}

func WriteStatsFile(path string, stats StatsFile) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	contents, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}
