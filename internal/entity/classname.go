package entity

import (
	"path"
	"reflect"
)

// ClassName returns "pkg.Type" for v's nearest named type, unwrapping
// pointers, slices and arrays. Anonymous types yield their reflect string.
// It is meant for logs and messages; two packages with the same base name
// share class names.
func ClassName(v any) string {
	t := namedType(v)
	if t == nil {
		return "<nil>"
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return path.Base(t.PkgPath()) + "." + t.Name()
}

// QualifiedClassName is like ClassName but keeps the full import path,
// e.g. "github.com/roach88/lazysync/internal/provider/memory.User".
// Registries persist and hash this form.
func QualifiedClassName(v any) string {
	t := namedType(v)
	if t == nil {
		return "<nil>"
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func namedType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	for k := t.Kind(); k == reflect.Pointer || k == reflect.Slice || k == reflect.Array; k = t.Kind() {
		t = t.Elem()
	}
	return t
}
