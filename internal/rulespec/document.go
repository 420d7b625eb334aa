package rulespec

import (
	"cuelang.org/go/cue"
)

// schema constrains rule documents. Definitions are closed, so unknown
// fields are reported with their position.
const schema = `
#Remove: string | {
	path:  string
	type?: string
}
#Replace: string | {
	path:  string
	type?: string
	as?:   string
}
#Rules: {
	max_depth?:        int & >=0
	detect_recursion?: bool
	friendly_links?:   bool
	date_layout?:      string
	remove?: [...#Remove]
	replace?: [...#Replace]
	expressions?: [...string]
}
`

// Document is a decoded rule document.
type Document struct {
	MaxDepth        *int64
	DetectRecursion *bool
	FriendlyLinks   bool
	DateLayout      string
	Remove          []RemoveSpec
	Replace         []ReplaceSpec
	Expressions     []string
}

// RemoveSpec is one removal entry.
type RemoveSpec struct {
	Path string
	Type string
}

// ReplaceSpec is one replacement entry.
type ReplaceSpec struct {
	Path   string
	Type   string
	Rename string
}

// Decode checks v against the rule schema and decodes it. v is the rule
// struct itself; see CompileString for documents with a "rules" field.
func Decode(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := v.Context().CompileString(schema).LookupPath(cue.ParsePath("#Rules"))
	if err := def.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	checked := def.Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &Document{}
	if f := checked.LookupPath(cue.ParsePath("max_depth")); f.Exists() {
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.MaxDepth = &n
	}
	if f := checked.LookupPath(cue.ParsePath("detect_recursion")); f.Exists() {
		b, err := f.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.DetectRecursion = &b
	}
	if f := checked.LookupPath(cue.ParsePath("friendly_links")); f.Exists() {
		b, err := f.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.FriendlyLinks = b
	}
	var err error
	if doc.DateLayout, err = optionalString(checked, "date_layout"); err != nil {
		return nil, err
	}

	if err := eachEntry(checked, "remove", func(e cue.Value) error {
		spec := RemoveSpec{}
		var err error
		if spec.Path, spec.Type, _, err = parseEntry(e); err != nil {
			return err
		}
		doc.Remove = append(doc.Remove, spec)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachEntry(checked, "replace", func(e cue.Value) error {
		spec := ReplaceSpec{}
		var err error
		if spec.Path, spec.Type, spec.Rename, err = parseEntry(e); err != nil {
			return err
		}
		doc.Replace = append(doc.Replace, spec)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachEntry(checked, "expressions", func(e cue.Value) error {
		s, err := e.String()
		if err != nil {
			return formatCUEError(err)
		}
		doc.Expressions = append(doc.Expressions, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return doc, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func eachEntry(v cue.Value, field string, fn func(cue.Value) error) error {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// parseEntry reads a rule entry written either as a bare path string or as
// a struct with path, type and as.
func parseEntry(e cue.Value) (path, typ, rename string, err error) {
	if s, err := e.String(); err == nil {
		return s, "", "", nil
	}
	if path, err = optionalString(e, "path"); err != nil {
		return "", "", "", err
	}
	if typ, err = optionalString(e, "type"); err != nil {
		return "", "", "", err
	}
	if rename, err = optionalString(e, "as"); err != nil {
		return "", "", "", err
	}
	return path, typ, rename, nil
}
