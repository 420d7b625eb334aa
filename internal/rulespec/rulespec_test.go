package rulespec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lazysync/internal/serialize"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		expr    string
		removes []serialize.RemoveRule
		repls   []serialize.ReplaceRule
	}{
		{
			expr:    "remove Secret",
			removes: []serialize.RemoveRule{{Path: serialize.Path{"Secret"}}},
		},
		{
			expr:    "remove Token from User",
			removes: []serialize.RemoveRule{{Path: serialize.Path{"Token"}, Type: "User"}},
		},
		{
			expr:  "replace Owner as OwnerId",
			repls: []serialize.ReplaceRule{{Path: serialize.Path{"Owner"}, Rename: "OwnerId"}},
		},
		{
			expr:  "replace Tags.[] with id",
			repls: []serialize.ReplaceRule{{Path: serialize.Path{"Tags", "[]"}}},
		},
		{
			expr:  "  replace Team in User as TeamId  ",
			repls: []serialize.ReplaceRule{{Path: serialize.Path{"Team"}, Type: "User", Rename: "TeamId"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			opt, err := ParseRule(tt.expr)
			require.NoError(t, err)
			rs := serialize.NewRuleSet(opt)
			assert.Equal(t, tt.removes, rs.Removes())
			assert.Equal(t, tt.repls, rs.Replaces())
		})
	}
}

func TestParseRule_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"drop Secret",
		"remove",
		"remove Secret extra",
		"replace Owner as",
		"replace Owner with name",
		"remove a..b",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseRule(expr)
			require.Error(t, err)
			var ce *CompileError
			if errors.As(err, &ce) {
				assert.Equal(t, "expression", ce.Field)
			}
		})
	}
}

func TestParseRules_SkipsCommentsAndReportsLine(t *testing.T) {
	opts, err := ParseRules("# display rules\n\nremove Secret\nreplace Owner as OwnerId\n")
	require.NoError(t, err)
	rs := serialize.NewRuleSet(opts...)
	assert.Len(t, rs.Removes(), 1)
	assert.Len(t, rs.Replaces(), 1)

	_, err = ParseRules("remove Secret\n\nexplode Owner\n")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Line)
	assert.Contains(t, ce.Error(), "line 3:")
}

func TestCompileString(t *testing.T) {
	rs, err := CompileString(`
		rules: {
			max_depth:        8
			detect_recursion: false
			friendly_links:   true
			date_layout:      "2006-01-02"
			remove: ["Secret", {path: "Token", type: "User"}]
			replace: [{path: "Owner", as: "OwnerId"}, "Tags.[]"]
			expressions: ["replace Author as AuthorId"]
		}
	`, "display.cue")
	require.NoError(t, err)

	assert.Equal(t, 8, rs.MaxDepth())
	assert.False(t, rs.DetectRecursion())
	assert.True(t, rs.FriendlyLinks())
	assert.Equal(t, []serialize.RemoveRule{
		{Path: serialize.Path{"Secret"}},
		{Path: serialize.Path{"Token"}, Type: "User"},
	}, rs.Removes())
	assert.Equal(t, []serialize.ReplaceRule{
		{Path: serialize.Path{"Owner"}, Rename: "OwnerId"},
		{Path: serialize.Path{"Tags", "[]"}},
		{Path: serialize.Path{"Author"}, Rename: "AuthorId"},
	}, rs.Replaces())
}

func TestCompileString_Defaults(t *testing.T) {
	rs, err := CompileString(`remove: ["Secret"]`, "bare.cue")
	require.NoError(t, err)
	assert.Equal(t, serialize.DefaultMaxDepth, rs.MaxDepth())
	assert.True(t, rs.DetectRecursion())
	assert.Len(t, rs.Removes(), 1)
}

func TestCompileString_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field":  `rules: { colour: "red" }`,
		"negative depth": `rules: { max_depth: -1 }`,
		"wrong type":     `rules: { remove: [1] }`,
		"syntax":         `rules: {`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := CompileString(src, "bad.cue")
			require.Error(t, err)
		})
	}
}

func TestCompileString_ErrorHasPosition(t *testing.T) {
	_, err := CompileString("rules: {\n\tremove: [\n", "pos.cue")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "pos.cue:")
}

func TestCompileRules_ValidationFailure(t *testing.T) {
	v := cuecontext.New().CompileString(`
		replace: [{path: "Owner", as: "Ref"}, {path: "Team", as: "Ref"}]
	`)
	_, err := CompileRules(v)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Message, ErrDuplicateRename)
}

func TestValidate_CollectsAll(t *testing.T) {
	neg := int64(-2)
	doc := &Document{
		MaxDepth:    &neg,
		Remove:      []RemoveSpec{{Path: ""}, {Path: "a.b-c"}},
		Replace:     []ReplaceSpec{{Path: "Owner", Rename: "not valid"}},
		Expressions: []string{"remove"},
	}
	errs := Validate(doc)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{ErrNegativeDepth, ErrEmptyPath, ErrBadPathSegment, ErrBadRename, ErrBadExpression}, codes)
}

func TestDecode_LookupPath(t *testing.T) {
	v := cuecontext.New().CompileString(`
		profiles: display: { remove: ["Secret"] }
	`)
	doc, err := Decode(v.LookupPath(cue.ParsePath("profiles.display")))
	require.NoError(t, err)
	assert.Equal(t, []RemoveSpec{{Path: "Secret"}}, doc.Remove)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	cuePath := filepath.Join(dir, "rules.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(`rules: { remove: ["Secret"] }`), 0o644))
	linePath := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(linePath, []byte("replace Owner as OwnerId\n"), 0o644))

	rs, err := LoadFile(cuePath)
	require.NoError(t, err)
	assert.Len(t, rs.Removes(), 1)

	rs, err = LoadFile(linePath)
	require.NoError(t, err)
	assert.Len(t, rs.Replaces(), 1)

	_, err = LoadFile(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestCompiledRulesSerialize(t *testing.T) {
	rs, err := CompileString(`rules: {
		remove: ["Secret"]
		replace: [{path: "Owner", as: "OwnerId"}]
	}`, "scenario.cue")
	require.NoError(t, err)

	got, err := serialize.Serialize(map[string]any{
		"Secret": "x",
		"Owner":  map[string]any{"Id": 9},
		"Name":   "n",
	}, rs)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"OwnerId": map[string]any{"Id": 9}, "Name": "n"}, got)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()

	cuePath := filepath.Join(dir, "rules.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(`rules: {
	remove: ["bad-seg"]
	replace: [{path: "A", as: "X"}, {path: "B", as: "X"}]
}
`), 0o644))
	errs, err := CheckFile(cuePath)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrBadPathSegment, errs[0].Code)
	assert.Equal(t, ErrDuplicateRename, errs[1].Code)

	linePath := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(linePath, []byte("# display\nremove Secret\nreplace\nremove a..b\n"), 0o644))
	errs, err = CheckFile(linePath)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "line 3", errs[0].Field)
	assert.Equal(t, "line 4", errs[1].Field)
	assert.Equal(t, ErrBadExpression, errs[1].Code)

	brokenPath := filepath.Join(dir, "broken.cue")
	require.NoError(t, os.WriteFile(brokenPath, []byte("rules: {\n\tremove: [\n"), 0o644))
	_, err = CheckFile(brokenPath)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, brokenPath, cerr.Pos.Filename())
}

func TestLoadOptions_OverridesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shallow.cue")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: 2\nremove: [\"Secret\"]\n"), 0o644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	base := serialize.NewRuleSet(serialize.WithMaxDepth(64), serialize.Remove("Token"))
	rs := base.With(opts...)
	assert.Equal(t, 2, rs.MaxDepth())
	assert.Len(t, rs.Removes(), 2)
	assert.Equal(t, 64, base.MaxDepth())
}
