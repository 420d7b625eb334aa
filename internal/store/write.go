package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotOpen is returned by FinishRun when the run does not exist or
// has already been finished.
var ErrRunNotOpen = errors.New("run not open")

// RunResult is the final state written when a run closes.
type RunResult struct {
	FinishedAt   time.Time
	ExitStatus   int
	ErrorCount   int
	WarningCount int
	// ErrorsJSON is the JSON array of collected error records. Empty means NULL.
	ErrorsJSON string
}

// UpsertProvider records a provider by hash and returns its stable id.
// A new hash inserts a row with added_at = last_seen = at. A known hash
// only has last_seen updated.
func (s *Store) UpsertProvider(ctx context.Context, hash, class string, at time.Time) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ms := toMillis(at)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO _sync_provider (provider_hash, provider_class, added_at, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(provider_hash) DO UPDATE SET last_seen = excluded.last_seen
		`, hash, class, ms, ms); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT provider_id FROM _sync_provider WHERE provider_hash = ?`, hash,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert provider: %w", err)
	}
	return id, nil
}

// UpsertEntityType records an entity type by class and returns its stable id.
func (s *Store) UpsertEntityType(ctx context.Context, class string, at time.Time) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ms := toMillis(at)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO _sync_entity_type (entity_type_class, added_at, last_seen)
			VALUES (?, ?, ?)
			ON CONFLICT(entity_type_class) DO UPDATE SET last_seen = excluded.last_seen
		`, class, ms, ms); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT entity_type_id FROM _sync_entity_type WHERE entity_type_class = ?`, class,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert entity type: %w", err)
	}
	return id, nil
}

// InsertRun opens a run row and returns its id.
func (s *Store) InsertRun(ctx context.Context, runUUID, command string, args []string, startedAt time.Time) (int64, error) {
	argsJSON, err := marshalArguments(args)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO _sync_run (run_uuid, run_command, run_arguments_json, started_at)
		VALUES (?, ?, ?, ?)
	`, runUUID, command, argsJSON, toMillis(startedAt))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun writes the final state of an open run. A run can be finished
// once; later calls return ErrRunNotOpen.
func (s *Store) FinishRun(ctx context.Context, runID int64, r RunResult) error {
	var errorsJSON any
	if r.ErrorsJSON != "" {
		errorsJSON = r.ErrorsJSON
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE _sync_run
		SET finished_at = ?, exit_status = ?, error_count = ?, warning_count = ?, errors_json = ?
		WHERE run_id = ? AND finished_at IS NULL
	`, toMillis(r.FinishedAt), r.ExitStatus, r.ErrorCount, r.WarningCount, errorsJSON, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %d: %w", runID, ErrRunNotOpen)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
