package serialize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/lazysync/internal/canon"
	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/entity"
)

// Link record keys.
const (
	LinkType        = "@type"
	LinkID          = "@id"
	LinkName        = "@name"
	LinkDescription = "@description"
	LinkWhy         = "@why"

	// LinkRelationship names the owner's property on the link of an
	// unresolved relationship, whose @type and @id are the owner's.
	LinkRelationship = "@relationship"
)

// CircularReference is the "@why" marker of a link that replaced an
// ancestor.
const CircularReference = "circular reference detected"

var timeType = reflect.TypeOf(time.Time{})

// walker holds the state of one Serialize call. The ancestor set is
// per-call, so concurrent serializations are independent.
type walker struct {
	rules     *RuleSet
	ancestors mapset.Set[string]
}

// scope is the nearest enclosing entity, used for type-scoped rules and
// the provider date formatter.
type scope struct {
	typeName string
	provider entity.Provider
}

// Serialize converts v into a plain tree. A nil rule set means Default().
func Serialize(v any, rules *RuleSet) (any, error) {
	if rules == nil {
		rules = Default()
	}
	w := &walker{rules: rules, ancestors: mapset.NewThreadUnsafeSet[string]()}
	return w.walk(v, nil, 0, scope{})
}

// SerializeJSON serializes v and encodes the tree as canonical JSON.
func SerializeJSON(v any, rules *RuleSet) ([]byte, error) {
	tree, err := Serialize(v, rules)
	if err != nil {
		return nil, err
	}
	return canon.MarshalCanonical(tree)
}

func (w *walker) walk(v any, at Path, depth int, sc scope) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x, nil
	case entity.ID:
		return x.Value(), nil
	case time.Time:
		return w.formatDate(x, sc), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return w.formatDate(*x, sc), nil
	case deferred.Unresolved:
		return w.walkPlaceholder(x, at, depth, sc)
	case entity.Entity:
		return w.walkEntity(x, at, depth)
	case map[string]any:
		return w.walkMap(x, at, depth, sc)
	case []any:
		return w.walkList(len(x), func(i int) any { return x[i] }, at, depth, sc)
	}
	return w.walkReflect(v, at, depth, sc)
}

// walkReflect handles typed containers and named scalar kinds.
func (w *walker) walkReflect(v any, at Path, depth int, sc scope) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		return w.walkList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, at, depth, sc)
	case reflect.Array:
		return w.walkList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, at, depth, sc)
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return w.walkMap(m, at, depth, sc)
		}
		if list, ok := contiguousList(rv); ok {
			return w.walkList(len(list), func(i int) any { return list[i] }, at, depth, sc)
		}
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return w.formatDate(rv.Convert(timeType).Interface().(time.Time), sc), nil
		}
	}
	return nil, w.unserializable(v, at)
}

// contiguousList returns the values of an integer-keyed map whose keys are
// exactly 0..n-1, in key order.
func contiguousList(rv reflect.Value) ([]any, bool) {
	var signed bool
	switch rv.Type().Key().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		signed = true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return nil, false
	}
	n := rv.Len()
	list := make([]any, n)
	seen := make([]bool, n)
	iter := rv.MapRange()
	for iter.Next() {
		var k int64
		if signed {
			k = iter.Key().Int()
		} else {
			u := iter.Key().Uint()
			if u >= uint64(n) {
				return nil, false
			}
			k = int64(u)
		}
		if k < 0 || k >= int64(n) || seen[k] {
			return nil, false
		}
		seen[k] = true
		list[k] = iter.Value().Interface()
	}
	return list, true
}

func (w *walker) unserializable(v any, at Path) error {
	dump := fmt.Sprintf("%#v", v)
	if len(dump) > 200 {
		dump = dump[:200] + "..."
	}
	return &Error{
		Code:    ErrCodeUnserializable,
		Path:    at.String(),
		Message: fmt.Sprintf("cannot serialize %T: %s", v, dump),
	}
}

// enter checks the depth limit for a structural node.
func (w *walker) enter(at Path, depth int) error {
	if limit := w.rules.maxDepth; limit > 0 && depth > limit {
		return &Error{
			Code:    ErrCodeMaxDepth,
			Path:    at.String(),
			Message: fmt.Sprintf("depth %d exceeds maximum %d", depth, limit),
		}
	}
	return nil
}

func (w *walker) formatDate(t time.Time, sc scope) string {
	if w.rules.dates != nil {
		return w.rules.dates.FormatDate(t)
	}
	if dp, ok := sc.provider.(entity.DateFormatterProvider); ok {
		if f := dp.DateFormatter(); f != nil {
			return f.FormatDate(t)
		}
	}
	return entity.DefaultDateFormatter.FormatDate(t)
}

// identity returns the ancestor-set key for e: provider hash, type and id,
// or the instance address when e has no id yet.
func identity(e entity.Entity) string {
	if k, ok := entity.KeyOf(e); ok {
		return k.String()
	}
	return fmt.Sprintf("%s/%s/_:%p", providerHash(e.Provider()), e.EntityType().Name, e)
}

func providerHash(p entity.Provider) string {
	if p == nil {
		return ""
	}
	return p.Registration().Hash
}

func linkID(e entity.Entity) any {
	if id := e.EntityID(); !id.IsZero() {
		return id.Value()
	}
	return fmt.Sprintf("_:%p", e)
}

// entityLink builds the link record for e.
func (w *walker) entityLink(e entity.Entity) map[string]any {
	link := map[string]any{
		LinkType: e.EntityType().URI,
		LinkID:   linkID(e),
	}
	if w.rules.friendlyLinks {
		if n, ok := e.(entity.Named); ok {
			link[LinkName] = n.EntityName()
		}
		if d, ok := e.(entity.Described); ok {
			link[LinkDescription] = d.EntityDescription()
		}
	}
	return link
}

func (w *walker) walkPlaceholder(u deferred.Unresolved, at Path, depth int, sc scope) (any, error) {
	if u.Resolved() {
		switch ref := u.(type) {
		case *deferred.EntityRef:
			if ref.Value() == nil {
				return nil, nil
			}
			return w.walk(ref.Value(), at, depth, sc)
		case *deferred.RelationshipRef:
			list := ref.Value()
			return w.walkList(len(list), func(i int) any { return list[i] }, at, depth, sc)
		}
	}
	link := map[string]any{
		LinkType: u.LinkType().URI,
		LinkID:   u.LinkID().Value(),
	}
	if rel, ok := u.(*deferred.RelationshipRef); ok {
		link[LinkRelationship] = rel.ForProperty
	}
	return link, nil
}

func (w *walker) walkEntity(e entity.Entity, at Path, depth int) (any, error) {
	if err := w.enter(at, depth); err != nil {
		return nil, err
	}
	key := identity(e)
	if w.rules.detectRecursion {
		if w.ancestors.Contains(key) {
			link := w.entityLink(e)
			link[LinkWhy] = CircularReference
			return link, nil
		}
		w.ancestors.Add(key)
		defer w.ancestors.Remove(key)
	}
	sc := scope{typeName: e.EntityType().Name, provider: e.Provider()}
	return w.walkFields(entity.ToMap(e), at, depth, sc)
}

func (w *walker) walkMap(m map[string]any, at Path, depth int, sc scope) (any, error) {
	if err := w.enter(at, depth); err != nil {
		return nil, err
	}
	return w.walkFields(m, at, depth, sc)
}

// walkFields applies rules to the fields of one map node and walks the
// survivors. The node itself has already passed the depth check.
func (w *walker) walkFields(m map[string]any, at Path, depth int, sc scope) (map[string]any, error) {
	out := make(map[string]any, len(m))
	renamedFrom := make(map[string]string)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		childAt := at.child(k)

		if rule, ok := w.rules.replacement(childAt, sc.typeName); ok {
			name := k
			if rule.Rename != "" && rule.Rename != k {
				name = rule.Rename
				if _, exists := m[name]; exists {
					return nil, conflict(childAt, "cannot rename %q to %q: field already present", k, name)
				}
				if prev, dup := renamedFrom[name]; dup {
					return nil, conflict(childAt, "fields %q and %q both renamed to %q", prev, k, name)
				}
				renamedFrom[name] = k
			}
			reduced, err := w.replace(rule, v, childAt, sc)
			if err != nil {
				return nil, err
			}
			out[name] = reduced
			continue
		}

		if w.rules.removed(childAt, sc.typeName) {
			continue
		}

		child, err := w.walk(v, childAt, depth+1, sc)
		if err != nil {
			return nil, err
		}
		out[k] = child
	}
	return out, nil
}

func conflict(at Path, format string, args ...any) error {
	return &Error{
		Code:    ErrCodeFieldConflict,
		Path:    at.String(),
		Message: fmt.Sprintf(format, args...),
	}
}

func (w *walker) walkList(n int, at func(int) any, path Path, depth int, sc scope) (any, error) {
	if err := w.enter(path, depth); err != nil {
		return nil, err
	}
	elemAt := path.child(ListMarker)
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v := at(i)
		if rule, ok := w.rules.replacement(elemAt, sc.typeName); ok {
			reduced, err := w.replace(rule, v, elemAt, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, reduced)
			continue
		}
		if w.rules.removed(elemAt, sc.typeName) {
			continue
		}
		child, err := w.walk(v, elemAt, depth+1, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (w *walker) replace(rule ReplaceRule, v any, at Path, sc scope) (any, error) {
	if rule.Transform != nil {
		var err error
		if v, err = rule.Transform(v); err != nil {
			return nil, fmt.Errorf("transform %s: %w", at, err)
		}
	}
	return w.reduce(v, at, sc)
}

// reduce replaces entities by their ids, recursing through lists and maps
// without expanding any entity.
func (w *walker) reduce(v any, at Path, sc scope) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case deferred.Unresolved:
		if ref, ok := x.(*deferred.EntityRef); ok && ref.Resolved() {
			if ref.Value() == nil {
				return nil, nil
			}
			return w.reduce(ref.Value(), at, sc)
		}
		if ref, ok := x.(*deferred.RelationshipRef); ok && ref.Resolved() {
			return w.reduce(ref.Value(), at, sc)
		}
		return x.LinkID().Value(), nil
	case entity.Entity:
		return linkID(x), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := w.reduce(e, at.child(k), sc)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		return w.reduceList(len(x), func(i int) any { return x[i] }, at, sc)
	case []entity.Entity:
		return w.reduceList(len(x), func(i int) any { return x[i] }, at, sc)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return w.reduceList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, at, sc)
	}
	// Scalars, dates and anything else take the normal path.
	return w.walk(v, at, 0, sc)
}

func (w *walker) reduceList(n int, at func(int) any, path Path, sc scope) (any, error) {
	out := make([]any, n)
	elemAt := path.child(ListMarker)
	for i := 0; i < n; i++ {
		r, err := w.reduce(at(i), elemAt, sc)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
