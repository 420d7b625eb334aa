package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type idKind uint8

const (
	idNone idKind = iota
	idInt
	idString
)

// ID is a provider-assigned identifier: an integer, a string, or nothing.
// The zero value is the null ID ("not yet known").
type ID struct {
	kind idKind
	n    int64
	s    string
}

// NoID is the null identifier.
var NoID = ID{}

// IntID returns an integer identifier.
func IntID(n int64) ID {
	return ID{kind: idInt, n: n}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{kind: idString, s: s}
}

// IDOf converts a loosely typed value (as found in decoded payloads) to an ID.
// Integral floats are accepted because JSON decoders produce them.
func IDOf(v any) (ID, error) {
	switch val := v.(type) {
	case nil:
		return NoID, nil
	case ID:
		return val, nil
	case int:
		return IntID(int64(val)), nil
	case int32:
		return IntID(int64(val)), nil
	case int64:
		return IntID(val), nil
	case uint32:
		return IntID(int64(val)), nil
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > 1<<53 {
			return NoID, fmt.Errorf("id %v is not an integer", val)
		}
		return IntID(int64(val)), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IntID(n), nil
		}
		return NoID, fmt.Errorf("id %q is not an integer", val.String())
	case string:
		return StringID(val), nil
	}
	return NoID, fmt.Errorf("unsupported id type %T", v)
}

// IsZero reports whether id is the null identifier.
func (id ID) IsZero() bool {
	return id.kind == idNone
}

// IsInt reports whether id is an integer identifier.
func (id ID) IsInt() bool {
	return id.kind == idInt
}

// Int returns the integer value, or 0 for non-integer ids.
func (id ID) Int() int64 {
	return id.n
}

// Value returns nil, an int64 or a string.
func (id ID) Value() any {
	switch id.kind {
	case idInt:
		return id.n
	case idString:
		return id.s
	}
	return nil
}

// String renders the id for messages. The null id renders as "<null>".
func (id ID) String() string {
	switch id.kind {
	case idInt:
		return strconv.FormatInt(id.n, 10)
	case idString:
		return id.s
	}
	return "<null>"
}

// key is a collision-free string form used inside identity keys:
// IntID(1) and StringID("1") must not collide.
func (id ID) key() string {
	switch id.kind {
	case idInt:
		return "i:" + strconv.FormatInt(id.n, 10)
	case idString:
		return "s:" + id.s
	}
	return ""
}

// MarshalJSON encodes the id as a JSON number, string or null.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value())
}

// UnmarshalJSON decodes a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := IDOf(raw)
	if err != nil {
		return err
	}
	*id = v
	return nil
}
