package manifest

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/merlin-labs/merlin/core"

	_ "modernc.org/sqlite"
)

//go:embed records_schema.sql
var recordsSchema string

// RecordStore is the SQLite side index of installation records, keyed by
// tool name plus install root.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens (or creates) the record index at the given DSN.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("records: open: %w", err)
	}

	// WAL keeps readers unblocked while the executor writes step results.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("records: set WAL mode: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("records: apply schema: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *RecordStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRecord creates a fresh in-progress record for one installation.
func NewRecord(toolName, installPath string, source core.SourceType) core.InstallationRecord {
	return core.InstallationRecord{
		ID:          uuid.NewString(),
		ToolName:    toolName,
		InstallPath: installPath,
		SourceType:  source,
		Status:      core.StatusInProgress,
		FailedStep:  -1,
		StartedAt:   time.Now().UTC(),
	}
}

// Put upserts a record keyed by tool name and install path.
func (s *RecordStore) Put(ctx context.Context, rec core.InstallationRecord) error {
	if s == nil || s.db == nil {
		return errors.New("records: store is closed")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	steps, err := json.Marshal(rec.StepResults)
	if err != nil {
		return fmt.Errorf("records: encode step results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO installation_records
			(id, tool_name, install_path, source_type, status, step_results, failed_step, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_name, install_path) DO UPDATE SET
			id = excluded.id,
			source_type = excluded.source_type,
			status = excluded.status,
			step_results = excluded.step_results,
			failed_step = excluded.failed_step,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		rec.ID, rec.ToolName, rec.InstallPath, string(rec.SourceType), string(rec.Status),
		string(steps), rec.FailedStep, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("records: upsert %q: %w", rec.ToolName, err)
	}
	return nil
}

// Get returns the record for a tool at an install path.
func (s *RecordStore) Get(ctx context.Context, toolName, installPath string) (core.InstallationRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.InstallationRecord{}, false, errors.New("records: store is closed")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool_name, install_path, source_type, status, step_results, failed_step, started_at, finished_at
		FROM installation_records
		WHERE tool_name = ? AND install_path = ?`,
		toolName, installPath,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.InstallationRecord{}, false, nil
	}
	if err != nil {
		return core.InstallationRecord{}, false, err
	}
	return rec, true, nil
}

// List returns all records ordered by start time, newest first.
func (s *RecordStore) List(ctx context.Context) ([]core.InstallationRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("records: store is closed")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_name, install_path, source_type, status, step_results, failed_step, started_at, finished_at
		FROM installation_records
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()

	var out []core.InstallationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.InstallationRecord, error) {
	var (
		rec                   core.InstallationRecord
		source, status        string
		steps                 string
		startedMS, finishedMS int64
	)
	err := row.Scan(&rec.ID, &rec.ToolName, &rec.InstallPath, &source, &status,
		&steps, &rec.FailedStep, &startedMS, &finishedMS)
	if err != nil {
		return core.InstallationRecord{}, err
	}
	rec.SourceType = core.SourceType(source)
	rec.Status = core.InstallStatus(status)
	if steps != "" {
		if err := json.Unmarshal([]byte(steps), &rec.StepResults); err != nil {
			return core.InstallationRecord{}, fmt.Errorf("records: decode step results: %w", err)
		}
	}
	rec.StartedAt = time.UnixMilli(startedMS).UTC()
	rec.FinishedAt = time.UnixMilli(finishedMS).UTC()
	return rec, nil
}
