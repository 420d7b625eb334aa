package canon

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"uint8", uint8(7), "7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"float integral", 3.0, "3"},
		{"float fraction", 1.5, "1.5"},
		{"float tiny", 1e-7, "1e-7"},
		{"float huge", 1e21, "1e+21"},
		{"json number int", json.Number("12"), "12"},
		{"json number float", json.Number("0.25"), "0.25"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"typed slice", []int64{1, 2, 3}, "[1,2,3]"},
		{"typed map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
		{"nil slice", []string(nil), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": []any{"x", nil, true},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null,true],"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// An escaped backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": math.Inf(1)})
	assert.Error(t, err)
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(map[int]string{1: "a"})
	assert.Error(t, err)

	_, err = MarshalCanonical(make(chan int))
	assert.Error(t, err)
}

type marshalerValue struct{}

func (marshalerValue) MarshalJSON() ([]byte, error) {
	return []byte(`{"z": 1, "a": [1.5, "x"]}`), nil
}

func TestMarshalCanonicalMarshaler(t *testing.T) {
	result, err := MarshalCanonical(marshalerValue{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1.5,"x"],"z":1}`, string(result))
}

func TestCompareKeysUTF16Order(t *testing.T) {
	// U+10000 encodes as surrogate pair 0xD800 0xDC00, which sorts before
	// U+E000 in UTF-16 but after it in UTF-8.
	keys := SortedKeys(map[string]int{"\U00010000": 1, "\uE000": 2, "a": 3})
	assert.Equal(t, []string{"a", "\U00010000", "\uE000"}, keys)
}

func TestHashStructuralEquality(t *testing.T) {
	a := map[string]any{"level": "error", "details": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"details": map[string]any{"y": 2, "x": 1}, "level": "error"}

	ha, err := Hash(DomainErrorRecord, a)
	require.NoError(t, err)
	hb, err := Hash(DomainErrorRecord, b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	// Domain separation.
	hp, err := Hash(DomainProvider, a)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hp)
}
