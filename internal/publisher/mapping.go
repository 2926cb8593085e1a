package publisher

import (
	"context"
	"database/sql"
	"errors"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/db"
	"forummigrate/internal/forum"
	"sync"
)

// RunInfo describes one import run.
type RunInfo struct {
	ID           string
	DryRun       bool
	SnapshotPath string
	DiscourseUrl string
}

// Mapping links a snapshot entity to what the import created for it.
type Mapping struct {
	Kind          forum.Kind
	SourceKey     string
	DestinationID int64
	RunID         string
}

// MappingStore remembers what previous imports created so that an import can
// be re-run without duplicating anything.
type MappingStore interface {
	StartRun(ctx context.Context, run RunInfo) error
	FinishRun(ctx context.Context, runID string) error
	// Lookup returns the destination id recorded for the entity, false when
	// there is none.
	Lookup(ctx context.Context, kind forum.Kind, sourceKey string) (int64, bool, error)
	Save(ctx context.Context, mapping Mapping) error
	RecordFailure(ctx context.Context, runID string, failure forum.Failure) error
}

// SqliteStore is the persistent MappingStore.
type SqliteStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
	clock  chrono.API
}

func NewSqliteStore(database *sql.DB, clock chrono.API) SqliteStore {
	return SqliteStore{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		clock:  clock,
	}
}

func (s SqliteStore) StartRun(ctx context.Context, run RunInfo) error {
	return s.qry.CreateImportRun(ctx, db.CreateImportRunParams{
		ID:           run.ID,
		StartedAt:    s.clock.Now().Unix(),
		DryRun:       run.DryRun,
		SnapshotPath: run.SnapshotPath,
		DiscourseUrl: run.DiscourseUrl,
	})
}

func (s SqliteStore) FinishRun(ctx context.Context, runID string) error {
	return s.qry.FinishImportRun(ctx, db.FinishImportRunParams{
		FinishedAt: s.clock.Now().Unix(),
		ID:         runID,
	})
}

func (s SqliteStore) Lookup(ctx context.Context, kind forum.Kind, sourceKey string) (int64, bool, error) {
	id, err := s.qry.GetMapping(ctx, db.GetMappingParams{
		Kind:      string(kind),
		SourceKey: sourceKey,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s SqliteStore) Save(ctx context.Context, mapping Mapping) error {
	return s.qry.SaveMapping(ctx, db.SaveMappingParams{
		Kind:          string(mapping.Kind),
		SourceKey:     mapping.SourceKey,
		DestinationID: mapping.DestinationID,
		RunID:         mapping.RunID,
		CreatedAt:     s.clock.Now().Unix(),
	})
}

func (s SqliteStore) RecordFailure(ctx context.Context, runID string, failure forum.Failure) error {
	return s.qry.CreateImportFailure(ctx, db.CreateImportFailureParams{
		RunID:    runID,
		Kind:     string(failure.Kind),
		EntityID: failure.ID,
		Reason:   failure.Reason,
	})
}

// ImportMappings copies mappings into the store in one transaction, used to
// carry the mappings of one database over to another.
func (s SqliteStore) ImportMappings(ctx context.Context, run RunInfo, mappings []Mapping) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	now := s.clock.Now().Unix()
	err = tx.CreateImportRun(ctx, db.CreateImportRunParams{
		ID:           run.ID,
		StartedAt:    now,
		SnapshotPath: run.SnapshotPath,
		DiscourseUrl: run.DiscourseUrl,
	})
	if err != nil {
		return err
	}
	for _, m := range mappings {
		err = tx.SaveMapping(ctx, db.SaveMappingParams{
			Kind:          string(m.Kind),
			SourceKey:     m.SourceKey,
			DestinationID: m.DestinationID,
			RunID:         run.ID,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
	}
	err = tx.FinishImportRun(ctx, db.FinishImportRunParams{FinishedAt: now, ID: run.ID})
	if err != nil {
		return err
	}
	return commit()
}

type mappingKey struct {
	kind forum.Kind
	key  string
}

// MemoryStore keeps mappings for the lifetime of the process. Lookups that
// miss fall through to the read only parent when there is one, which lets a
// dry run see what earlier live runs created without recording anything.
type MemoryStore struct {
	parent MappingStore

	mutex    sync.Mutex
	mappings map[mappingKey]Mapping
}

func NewMemoryStore(parent MappingStore) *MemoryStore {
	return &MemoryStore{
		parent:   parent,
		mappings: map[mappingKey]Mapping{},
	}
}

func (m *MemoryStore) StartRun(ctx context.Context, run RunInfo) error {
	return nil
}

func (m *MemoryStore) FinishRun(ctx context.Context, runID string) error {
	return nil
}

func (m *MemoryStore) Lookup(ctx context.Context, kind forum.Kind, sourceKey string) (int64, bool, error) {
	m.mutex.Lock()
	mapping, ok := m.mappings[mappingKey{kind: kind, key: sourceKey}]
	m.mutex.Unlock()
	if ok {
		return mapping.DestinationID, true, nil
	}
	if m.parent == nil {
		return 0, false, nil
	}
	return m.parent.Lookup(ctx, kind, sourceKey)
}

func (m *MemoryStore) Save(ctx context.Context, mapping Mapping) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mappings[mappingKey{kind: mapping.Kind, key: mapping.SourceKey}] = mapping
	return nil
}

// RecordFailure keeps nothing, the failures of a run are in its Report.
func (m *MemoryStore) RecordFailure(ctx context.Context, runID string, failure forum.Failure) error {
	return nil
}
