package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/lazysync/internal/canon"
)

// Level is the severity of a collected error record.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNotice  Level = "notice"
)

// ErrorRecord is one error encountered during sync operations.
type ErrorRecord struct {
	Level      Level
	Message    string
	Provider   string
	EntityType string
	Operation  string
	Details    map[string]any
	Time       time.Time
}

// NewErrorRecord builds a record from err at level.
func NewErrorRecord(level Level, err error) ErrorRecord {
	return ErrorRecord{Level: level, Message: err.Error()}
}

// structure is the record without its timestamp. Two records with the
// same structure are duplicates.
func (r ErrorRecord) structure() map[string]any {
	m := map[string]any{
		"level":   string(r.Level),
		"message": r.Message,
	}
	if r.Provider != "" {
		m["provider"] = r.Provider
	}
	if r.EntityType != "" {
		m["entity_type"] = r.EntityType
	}
	if r.Operation != "" {
		m["operation"] = r.Operation
	}
	if len(r.Details) > 0 {
		m["details"] = r.Details
	}
	return m
}

func (r ErrorRecord) toMap() map[string]any {
	m := r.structure()
	if !r.Time.IsZero() {
		m["time"] = r.Time.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func (r ErrorRecord) hash() (string, error) {
	return canon.Hash(canon.DomainErrorRecord, r.structure())
}

func (r ErrorRecord) slogLevel() slog.Level {
	switch r.Level {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func (r ErrorRecord) mirror(ctx context.Context, logger *slog.Logger) {
	attrs := []any{"level_name", string(r.Level)}
	if r.Provider != "" {
		attrs = append(attrs, "provider", r.Provider)
	}
	if r.EntityType != "" {
		attrs = append(attrs, "entity_type", r.EntityType)
	}
	if r.Operation != "" {
		attrs = append(attrs, "operation", r.Operation)
	}
	logger.Log(ctx, r.slogLevel(), r.Message, attrs...)
}

// encodeRecords renders records as a canonical JSON array for errors_json.
func encodeRecords(records []ErrorRecord) (string, error) {
	list := make([]any, len(records))
	for i, r := range records {
		list[i] = r.toMap()
	}
	data, err := canon.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("encode error records: %w", err)
	}
	return string(data), nil
}
