package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Reserved field names produced by ToMap for every entity.
const (
	FieldID          = "Id"
	FieldCanonicalID = "CanonicalId"
)

// TypeURIBase prefixes generated type URIs.
const TypeURIBase = "https://lazysync.dev/entity/"

// Field maps one named field to accessors on a concrete entity.
type Field struct {
	Name string
	Get  func(Entity) any
	// Set is optional; fields without it are read-only for hydration and
	// cannot receive resolved placeholders.
	Set func(Entity, any) error
}

// Type describes an entity type: its names and its field-mapping table.
// A Type is built once (typically in a package-level var) and not modified
// afterwards.
type Type struct {
	Name   string
	Plural string
	URI    string
	Fields []Field
	New    func() Entity

	index map[string]int
}

// NewType builds a type descriptor. Plural defaults to Name+"s" and URI to
// TypeURIBase plus the lower-cased name.
func NewType(name string, newFn func() Entity, fields ...Field) *Type {
	t := &Type{
		Name:   name,
		Plural: name + "s",
		URI:    TypeURIBase + strings.ToLower(name),
		Fields: fields,
		New:    newFn,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := t.index[f.Name]; !dup {
			t.index[f.Name] = i
		}
	}
	return t
}

// WithPlural overrides the plural name and returns t.
func (t *Type) WithPlural(plural string) *Type {
	t.Plural = plural
	return t
}

// WithURI overrides the canonical type URI and returns t.
func (t *Type) WithURI(uri string) *Type {
	t.URI = uri
	return t
}

// Field returns the named field.
func (t *Type) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// FieldNames returns declared field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Class returns the qualified Go type name of the entities t produces.
// Registries persist it as the entity type class.
func (t *Type) Class() string {
	if t.New == nil {
		return ""
	}
	return QualifiedClassName(t.New())
}

func (t *Type) String() string {
	return t.Name
}

// Validate checks that t satisfies the base entity contract.
func (t *Type) Validate() error {
	if t == nil {
		return errors.New("nil entity type")
	}
	if t.Name == "" {
		return errors.New("entity type has no name")
	}
	if t.Plural == "" || t.Plural == t.Name {
		return fmt.Errorf("entity type %s: plural name must differ from singular", t.Name)
	}
	if t.New == nil {
		return fmt.Errorf("entity type %s: no constructor", t.Name)
	}
	e := t.New()
	if e == nil || reflect.ValueOf(e).Kind() != reflect.Pointer || reflect.ValueOf(e).IsNil() {
		return fmt.Errorf("entity type %s: constructor must return a non-nil pointer", t.Name)
	}
	if e.EntityType() != t {
		return fmt.Errorf("entity type %s: constructed %s reports a different type", t.Name, ClassName(e))
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("entity type %s: field with empty name", t.Name)
		case f.Name == FieldID || f.Name == FieldCanonicalID:
			return fmt.Errorf("entity type %s: field name %q is reserved", t.Name, f.Name)
		case seen[f.Name]:
			return fmt.Errorf("entity type %s: duplicate field %q", t.Name, f.Name)
		case f.Get == nil:
			return fmt.Errorf("entity type %s: field %q has no getter", t.Name, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// FieldOf builds a typed field accessor. set may be nil for read-only fields.
// Values of a different but convertible kind (int to int64, for example)
// are converted on Set.
func FieldOf[E Entity, V any](name string, get func(E) V, set func(E, V)) Field {
	f := Field{
		Name: name,
		Get: func(e Entity) any {
			return get(e.(E))
		},
	}
	if set != nil {
		f.Set = func(e Entity, v any) error {
			target, ok := e.(E)
			if !ok {
				return fmt.Errorf("field %s: entity is %T", name, e)
			}
			tv, err := convertTo[V](v)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			set(target, tv)
			return nil
		}
	}
	return f
}

func convertTo[V any](v any) (V, error) {
	var zero V
	if v == nil {
		return zero, nil
	}
	if tv, ok := v.(V); ok {
		return tv, nil
	}
	want := reflect.TypeOf((*V)(nil)).Elem()
	rv := reflect.ValueOf(v)
	if convertible(rv.Kind(), want.Kind()) && rv.CanConvert(want) {
		return rv.Convert(want).Interface().(V), nil
	}
	return zero, fmt.Errorf("cannot assign %T to %s", v, want)
}

func convertible(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
	}
	return (numeric(from) && numeric(to)) || (from == reflect.String && to == reflect.String)
}
