package db

import (
	"database/sql"
)

type IdMapping struct {
	Kind          string
	SourceKey     string
	DestinationID int64
	RunID         string
	CreatedAt     int64
}

type ImportFailure struct {
	RunID    string
	Kind     string
	EntityID string
	Reason   string
}

type ImportRun struct {
	ID           string
	StartedAt    int64
	FinishedAt   sql.NullInt64
	DryRun       bool
	SnapshotPath string
	DiscourseUrl string
}
