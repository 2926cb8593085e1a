package db

import (
	"context"
)

const createImportRun = `
insert into import_run(id, started_at, dry_run, snapshot_path, discourse_url)
values (?, ?, ?, ?, ?)
`

type CreateImportRunParams struct {
	ID           string
	StartedAt    int64
	DryRun       bool
	SnapshotPath string
	DiscourseUrl string
}

func (q *Queries) CreateImportRun(ctx context.Context, arg CreateImportRunParams) error {
	_, err := q.db.ExecContext(ctx, createImportRun,
		arg.ID,
		arg.StartedAt,
		arg.DryRun,
		arg.SnapshotPath,
		arg.DiscourseUrl,
	)
	return err
}

const finishImportRun = `
update import_run set finished_at = ? where id = ?
`

type FinishImportRunParams struct {
	FinishedAt int64
	ID         string
}

func (q *Queries) FinishImportRun(ctx context.Context, arg FinishImportRunParams) error {
	_, err := q.db.ExecContext(ctx, finishImportRun, arg.FinishedAt, arg.ID)
	return err
}

const listImportRuns = `
select id, started_at, finished_at, dry_run, snapshot_path, discourse_url from import_run order by started_at desc
`

func (q *Queries) ListImportRuns(ctx context.Context) ([]ImportRun, error) {
	rows, err := q.db.QueryContext(ctx, listImportRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		var i ImportRun
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DryRun,
			&i.SnapshotPath,
			&i.DiscourseUrl,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMapping = `
select destination_id from id_mapping
where kind = ? and source_key = ?
`

type GetMappingParams struct {
	Kind      string
	SourceKey string
}

func (q *Queries) GetMapping(ctx context.Context, arg GetMappingParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, getMapping, arg.Kind, arg.SourceKey)
	var destination_id int64
	err := row.Scan(&destination_id)
	return destination_id, err
}

const saveMapping = `
insert into id_mapping(kind, source_key, destination_id, run_id, created_at)
values (?, ?, ?, ?, ?)
on conflict (kind, source_key) do update set
    destination_id = excluded.destination_id,
    run_id = excluded.run_id,
    created_at = excluded.created_at
`

type SaveMappingParams struct {
	Kind          string
	SourceKey     string
	DestinationID int64
	RunID         string
	CreatedAt     int64
}

func (q *Queries) SaveMapping(ctx context.Context, arg SaveMappingParams) error {
	_, err := q.db.ExecContext(ctx, saveMapping,
		arg.Kind,
		arg.SourceKey,
		arg.DestinationID,
		arg.RunID,
		arg.CreatedAt,
	)
	return err
}

const listMappings = `
select kind, source_key, destination_id, run_id, created_at from id_mapping order by created_at, kind, source_key
`

func (q *Queries) ListMappings(ctx context.Context) ([]IdMapping, error) {
	rows, err := q.db.QueryContext(ctx, listMappings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []IdMapping
	for rows.Next() {
		var i IdMapping
		if err := rows.Scan(
			&i.Kind,
			&i.SourceKey,
			&i.DestinationID,
			&i.RunID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countMappingsByKind = `
select kind, count(*) as count from id_mapping
group by kind order by kind
`

type CountMappingsByKindRow struct {
	Kind  string
	Count int64
}

func (q *Queries) CountMappingsByKind(ctx context.Context) ([]CountMappingsByKindRow, error) {
	rows, err := q.db.QueryContext(ctx, countMappingsByKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountMappingsByKindRow
	for rows.Next() {
		var i CountMappingsByKindRow
		if err := rows.Scan(&i.Kind, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createImportFailure = `
insert into import_failure(run_id, kind, entity_id, reason)
values (?, ?, ?, ?)
`

type CreateImportFailureParams struct {
	RunID    string
	Kind     string
	EntityID string
	Reason   string
}

func (q *Queries) CreateImportFailure(ctx context.Context, arg CreateImportFailureParams) error {
	_, err := q.db.ExecContext(ctx, createImportFailure,
		arg.RunID,
		arg.Kind,
		arg.EntityID,
		arg.Reason,
	)
	return err
}

const listImportFailures = `
select run_id, kind, entity_id, reason from import_failure where run_id = ?
`

func (q *Queries) ListImportFailures(ctx context.Context, runID string) ([]ImportFailure, error) {
	rows, err := q.db.QueryContext(ctx, listImportFailures, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportFailure
	for rows.Next() {
		var i ImportFailure
		if err := rows.Scan(
			&i.RunID,
			&i.Kind,
			&i.EntityID,
			&i.Reason,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
