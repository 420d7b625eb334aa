package entity

import "fmt"

// Transformer maps a raw backend row into an entity-shaped map. Concrete
// providers compose these into pipelines.
type Transformer interface {
	Transform(in map[string]any) (map[string]any, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(in map[string]any) (map[string]any, error)

func (f TransformFunc) Transform(in map[string]any) (map[string]any, error) {
	return f(in)
}

// Pipeline applies transformers in order.
type Pipeline []Transformer

func (p Pipeline) Transform(in map[string]any) (map[string]any, error) {
	out := in
	for i, t := range p {
		var err error
		if out, err = t.Transform(out); err != nil {
			return nil, fmt.Errorf("transform step %d: %w", i, err)
		}
	}
	return out, nil
}

// RenameKeys returns a transformer that renames keys per the from→to map.
func RenameKeys(mapping map[string]string) Transformer {
	return TransformFunc(func(in map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(in))
		for k, v := range in {
			if to, ok := mapping[k]; ok {
				k = to
			}
			out[k] = v
		}
		return out, nil
	})
}

// Hydrate builds a t entity from row. "Id" and "CanonicalId" populate the
// identifiers, declared fields go through their setters, and anything else
// lands in the extension map when the entity is Extensible.
func Hydrate(t *Type, p Provider, c *Context, row map[string]any) (Entity, error) {
	e := t.New()
	e.Bind(p, c)
	for k, v := range row {
		switch k {
		case FieldID:
			id, err := IDOf(v)
			if err != nil {
				return nil, fmt.Errorf("hydrate %s: %w", t.Name, err)
			}
			e.SetEntityID(id)
			continue
		case FieldCanonicalID:
			id, err := IDOf(v)
			if err != nil {
				return nil, fmt.Errorf("hydrate %s canonical id: %w", t.Name, err)
			}
			e.SetCanonicalID(id)
			continue
		}
		if f, ok := t.Field(k); ok {
			if f.Set == nil {
				return nil, fmt.Errorf("hydrate %s: field %q is read-only", t.Name, k)
			}
			if err := f.Set(e, v); err != nil {
				return nil, fmt.Errorf("hydrate %s: %w", t.Name, err)
			}
			continue
		}
		if ext, ok := e.(Extensible); ok {
			ext.SetExtra(k, v)
		}
	}
	return e, nil
}

// ToMap returns e's plain-field representation: "Id", "CanonicalId" when
// set, declared fields in table order, then extension fields that do not
// shadow a declared one.
func ToMap(e Entity) map[string]any {
	t := e.EntityType()
	out := make(map[string]any, len(t.Fields)+2)
	out[FieldID] = e.EntityID().Value()
	if cid := e.CanonicalID(); !cid.IsZero() {
		out[FieldCanonicalID] = cid.Value()
	}
	for _, f := range t.Fields {
		out[f.Name] = f.Get(e)
	}
	if ext, ok := e.(Extensible); ok {
		for k, v := range ext.Extras() {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}
