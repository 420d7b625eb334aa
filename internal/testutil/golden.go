package testutil

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lazysync/internal/canon"
)

// AssertGolden compares data against testdata/golden/<name>.golden in the
// calling package. Run the tests with -update to rewrite the file.
func AssertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// AssertCanonicalGolden encodes v as canonical JSON and compares it
// against the named golden file.
func AssertCanonicalGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := canon.MarshalCanonical(v)
	if err != nil {
		t.Fatalf("canonical marshal: %v", err)
	}
	AssertGolden(t, name, data)
}
