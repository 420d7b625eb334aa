package rulespec

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/serialize"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_@][A-Za-z0-9_]*$`)

// Validate checks a decoded document. It returns every problem found
// rather than stopping at the first.
func Validate(doc *Document) []ValidationError {
	var errs []ValidationError
	if doc.MaxDepth != nil && *doc.MaxDepth < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_depth",
			Message: fmt.Sprintf("must not be negative, got %d", *doc.MaxDepth),
			Code:    ErrNegativeDepth,
		})
	}
	for i, r := range doc.Remove {
		errs = append(errs, validatePath(fmt.Sprintf("remove[%d]", i), r.Path)...)
	}
	renamed := make(map[string]string)
	for i, r := range doc.Replace {
		field := fmt.Sprintf("replace[%d]", i)
		errs = append(errs, validatePath(field, r.Path)...)
		if r.Rename == "" {
			continue
		}
		if !fieldName.MatchString(r.Rename) {
			errs = append(errs, ValidationError{
				Field:   field + ".as",
				Message: fmt.Sprintf("%q is not a field name", r.Rename),
				Code:    ErrBadRename,
			})
			continue
		}
		key := r.Type + "/" + r.Rename
		if prev, dup := renamed[key]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".as",
				Message: fmt.Sprintf("%s and %s both rename to %q", prev, r.Path, r.Rename),
				Code:    ErrDuplicateRename,
			})
			continue
		}
		renamed[key] = r.Path
	}
	for i, expr := range doc.Expressions {
		if _, err := ParseRule(expr); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("expressions[%d]", i),
				Message: err.Error(),
				Code:    ErrBadExpression,
			})
		}
	}
	return errs
}

func validatePath(field, path string) []ValidationError {
	if path == "" {
		return []ValidationError{{Field: field + ".path", Message: "path is required", Code: ErrEmptyPath}}
	}
	var errs []ValidationError
	for _, seg := range strings.Split(path, ".") {
		if seg == serialize.ListMarker || fieldName.MatchString(seg) {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: fmt.Sprintf("invalid segment %q in %q", seg, path),
			Code:    ErrBadPathSegment,
		})
	}
	return errs
}

// Options converts a valid document into rule options, in document order:
// settings, removals, replacements, then expressions.
func (doc *Document) Options() ([]serialize.RuleOption, error) {
	var opts []serialize.RuleOption
	if doc.MaxDepth != nil {
		opts = append(opts, serialize.WithMaxDepth(int(*doc.MaxDepth)))
	}
	if doc.DetectRecursion != nil {
		opts = append(opts, serialize.WithRecursionDetection(*doc.DetectRecursion))
	}
	if doc.FriendlyLinks {
		opts = append(opts, serialize.WithFriendlyLinks(true))
	}
	if doc.DateLayout != "" {
		opts = append(opts, serialize.WithDateFormatter(entity.DateLayout(doc.DateLayout)))
	}
	for _, r := range doc.Remove {
		var ro []serialize.RemoveOption
		if r.Type != "" {
			ro = append(ro, serialize.RemoveFrom(r.Type))
		}
		opts = append(opts, serialize.Remove(r.Path, ro...))
	}
	for _, r := range doc.Replace {
		var ro []serialize.ReplaceOption
		if r.Type != "" {
			ro = append(ro, serialize.ReplaceIn(r.Type))
		}
		if r.Rename != "" {
			ro = append(ro, serialize.Rename(r.Rename))
		}
		opts = append(opts, serialize.Replace(r.Path, ro...))
	}
	for _, expr := range doc.Expressions {
		opt, err := ParseRule(expr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// CompileRules builds a rule set from a CUE rule struct.
func CompileRules(v cue.Value) (*serialize.RuleSet, error) {
	opts, err := compileOptions(v)
	if err != nil {
		return nil, err
	}
	return serialize.NewRuleSet(opts...), nil
}

func compileOptions(v cue.Value) ([]serialize.RuleOption, error) {
	doc, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(doc); len(errs) > 0 {
		first := errs[0]
		return nil, &CompileError{
			Field:   first.Field,
			Message: fmt.Sprintf("[%s] %s", first.Code, first.Message),
			Pos:     v.Pos(),
		}
	}
	return doc.Options()
}

// CompileString compiles CUE source. When the document has a top-level
// "rules" field that struct is compiled; otherwise the whole document is.
func CompileString(src, filename string) (*serialize.RuleSet, error) {
	opts, err := compileStringOptions(src, filename)
	if err != nil {
		return nil, err
	}
	return serialize.NewRuleSet(opts...), nil
}

func compileStringOptions(src, filename string) ([]serialize.RuleOption, error) {
	v, err := compileSource(src, filename)
	if err != nil {
		return nil, err
	}
	return compileOptions(v)
}

// compileSource compiles src and selects its "rules" struct if present.
func compileSource(src, filename string) (cue.Value, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	if rules := v.LookupPath(cue.ParsePath("rules")); rules.Exists() {
		v = rules
	}
	return v, nil
}

// LoadFile reads a rule set from path. Files ending in ".cue" are CUE rule
// documents; anything else is read as rule expressions, one per line.
func LoadFile(path string) (*serialize.RuleSet, error) {
	opts, err := LoadOptions(path)
	if err != nil {
		return nil, err
	}
	return serialize.NewRuleSet(opts...), nil
}

// LoadOptions is like LoadFile but returns the options, so callers can
// apply a file on top of an existing rule set with RuleSet.With. Settings
// the file names then override the existing ones.
func LoadOptions(path string) ([]serialize.RuleOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return compileStringOptions(string(data), path)
	}
	opts, err := ParseRules(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// CheckFile validates the rule file at path and reports every problem
// found. The error is non-nil only when the file cannot be read or is not
// well-formed CUE.
func CheckFile(path string) ([]ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if filepath.Ext(path) != ".cue" {
		return checkExpressions(string(data)), nil
	}

	v, err := compileSource(string(data), path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(v)
	if err != nil {
		return nil, err
	}
	return Validate(doc), nil
}

func checkExpressions(text string) []ValidationError {
	var errs []ValidationError
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := parseLine(line, i+1); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("line %d", i+1),
				Message: err.Error(),
				Code:    ErrBadExpression,
			})
		}
	}
	return errs
}
