package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/lazysync/internal/canon"
)

// toMillis converts t to the INTEGER column representation.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts an INTEGER column back to UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// marshalArguments serializes run arguments to canonical JSON.
// A nil slice is stored as "[]".
func marshalArguments(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	data, err := canon.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal arguments: %w", err)
	}
	return string(data), nil
}

// unmarshalArguments deserializes the run_arguments_json column.
func unmarshalArguments(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	if args == nil {
		args = []string{}
	}
	return args, nil
}
