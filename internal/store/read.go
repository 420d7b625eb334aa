package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is one row of _sync_run.
type RunRecord struct {
	ID           int64
	UUID         string
	Command      string
	Arguments    []string
	StartedAt    time.Time
	FinishedAt   *time.Time
	ExitStatus   *int
	ErrorCount   int
	WarningCount int
	ErrorsJSON   string
}

// Open reports whether the run has not been finished.
func (r RunRecord) Open() bool {
	return r.FinishedAt == nil
}

// ProviderRecord is one row of _sync_provider.
type ProviderRecord struct {
	ID       int64     `json:"id"`
	Hash     string    `json:"hash"`
	Class    string    `json:"class"`
	AddedAt  time.Time `json:"added_at"`
	LastSeen time.Time `json:"last_seen"`
}

// EntityTypeRecord is one row of _sync_entity_type.
type EntityTypeRecord struct {
	ID       int64     `json:"id"`
	Class    string    `json:"class"`
	AddedAt  time.Time `json:"added_at"`
	LastSeen time.Time `json:"last_seen"`
}

const runColumns = `run_id, run_uuid, run_command, run_arguments_json, started_at,
	finished_at, exit_status, error_count, warning_count, errors_json`

// ReadRun returns a single run by id.
func (s *Store) ReadRun(ctx context.Context, runID int64) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM _sync_run WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %d: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %d: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM _sync_run ORDER BY run_id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListProviders returns every recorded provider ordered by id.
func (s *Store) ListProviders(ctx context.Context) ([]ProviderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, provider_hash, provider_class, added_at, last_seen
		FROM _sync_provider
		ORDER BY provider_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	providers := []ProviderRecord{}
	for rows.Next() {
		var rec ProviderRecord
		var added, seen int64
		if err := rows.Scan(&rec.ID, &rec.Hash, &rec.Class, &added, &seen); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		rec.AddedAt = fromMillis(added)
		rec.LastSeen = fromMillis(seen)
		providers = append(providers, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return providers, nil
}

// ListEntityTypes returns every recorded entity type ordered by id.
func (s *Store) ListEntityTypes(ctx context.Context) ([]EntityTypeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type_id, entity_type_class, added_at, last_seen
		FROM _sync_entity_type
		ORDER BY entity_type_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entity types: %w", err)
	}
	defer rows.Close()

	types := []EntityTypeRecord{}
	for rows.Next() {
		var rec EntityTypeRecord
		var added, seen int64
		if err := rows.Scan(&rec.ID, &rec.Class, &added, &seen); err != nil {
			return nil, fmt.Errorf("scan entity type: %w", err)
		}
		rec.AddedAt = fromMillis(added)
		rec.LastSeen = fromMillis(seen)
		types = append(types, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity types: %w", err)
	}
	return types, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec        RunRecord
		argsJSON   string
		started    int64
		finished   sql.NullInt64
		exitStatus sql.NullInt64
		errorsJSON sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.UUID, &rec.Command, &argsJSON, &started,
		&finished, &exitStatus, &rec.ErrorCount, &rec.WarningCount, &errorsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	args, err := unmarshalArguments(argsJSON)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Arguments = args
	rec.StartedAt = fromMillis(started)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		rec.FinishedAt = &t
	}
	if exitStatus.Valid {
		code := int(exitStatus.Int64)
		rec.ExitStatus = &code
	}
	rec.ErrorsJSON = errorsJSON.String
	return rec, nil
}
