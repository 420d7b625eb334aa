package serialize

import (
	"github.com/roach88/lazysync/internal/entity"
)

// DefaultMaxDepth bounds the walk when a rule set does not set a depth.
const DefaultMaxDepth = 64

// TransformFunc rewrites a replaced value before it is reduced to ids.
type TransformFunc func(v any) (any, error)

// RemoveRule drops the fields its path selects.
type RemoveRule struct {
	Path Path
	// Type limits the rule to fields of entities of this type name.
	Type string
}

// ReplaceRule reduces the fields its path selects to identifiers,
// optionally renaming them and transforming the value first.
type ReplaceRule struct {
	Path      Path
	Type      string
	Rename    string
	Transform TransformFunc
}

// RuleSet is an immutable set of serialization rules. Build one with
// NewRuleSet; the zero value is not usable.
type RuleSet struct {
	removes         []RemoveRule
	replaces        []ReplaceRule
	maxDepth        int
	detectRecursion bool
	friendlyLinks   bool
	dates           entity.DateFormatter
}

// RuleOption configures a RuleSet.
type RuleOption func(*RuleSet)

// Remove drops fields selected by path.
func Remove(path string, opts ...RemoveOption) RuleOption {
	return func(rs *RuleSet) {
		r := RemoveRule{Path: ParsePath(path)}
		for _, opt := range opts {
			opt(&r)
		}
		rs.removes = append(rs.removes, r)
	}
}

// RemoveOption configures a RemoveRule.
type RemoveOption func(*RemoveRule)

// RemoveFrom limits a removal to entities of type name.
func RemoveFrom(name string) RemoveOption {
	return func(r *RemoveRule) {
		r.Type = name
	}
}

// Replace reduces fields selected by path to identifiers.
func Replace(path string, opts ...ReplaceOption) RuleOption {
	return func(rs *RuleSet) {
		r := ReplaceRule{Path: ParsePath(path)}
		for _, opt := range opts {
			opt(&r)
		}
		rs.replaces = append(rs.replaces, r)
	}
}

// ReplaceOption configures a ReplaceRule.
type ReplaceOption func(*ReplaceRule)

// Rename outputs the replaced field under name.
func Rename(name string) ReplaceOption {
	return func(r *ReplaceRule) {
		r.Rename = name
	}
}

// Transform applies fn to the value before it is reduced.
func Transform(fn TransformFunc) ReplaceOption {
	return func(r *ReplaceRule) {
		r.Transform = fn
	}
}

// ReplaceIn limits a replacement to entities of type name.
func ReplaceIn(name string) ReplaceOption {
	return func(r *ReplaceRule) {
		r.Type = name
	}
}

// WithMaxDepth sets the deepest structural node allowed; the root is depth
// 0. Zero disables the limit.
func WithMaxDepth(n int) RuleOption {
	return func(rs *RuleSet) {
		rs.maxDepth = n
	}
}

// WithRecursionDetection enables or disables circular reference links.
func WithRecursionDetection(enabled bool) RuleOption {
	return func(rs *RuleSet) {
		rs.detectRecursion = enabled
	}
}

// WithFriendlyLinks adds "@name" and "@description" to entity links.
func WithFriendlyLinks(enabled bool) RuleOption {
	return func(rs *RuleSet) {
		rs.friendlyLinks = enabled
	}
}

// WithDateFormatter sets the formatter for time values.
func WithDateFormatter(f entity.DateFormatter) RuleOption {
	return func(rs *RuleSet) {
		rs.dates = f
	}
}

// NewRuleSet builds a rule set. Recursion detection is on and the depth is
// DefaultMaxDepth unless overridden.
func NewRuleSet(opts ...RuleOption) *RuleSet {
	rs := &RuleSet{
		maxDepth:        DefaultMaxDepth,
		detectRecursion: true,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Default returns a rule set with no field rules.
func Default() *RuleSet {
	return NewRuleSet()
}

func (rs *RuleSet) MaxDepth() int { return rs.maxDepth }

func (rs *RuleSet) DetectRecursion() bool { return rs.detectRecursion }

func (rs *RuleSet) FriendlyLinks() bool { return rs.friendlyLinks }

// Removes returns a copy of the removal rules.
func (rs *RuleSet) Removes() []RemoveRule {
	return append([]RemoveRule(nil), rs.removes...)
}

// Replaces returns a copy of the replacement rules.
func (rs *RuleSet) Replaces() []ReplaceRule {
	return append([]ReplaceRule(nil), rs.replaces...)
}

// With returns a new rule set with opts applied on top of rs.
func (rs *RuleSet) With(opts ...RuleOption) *RuleSet {
	cp := *rs
	cp.removes = rs.Removes()
	cp.replaces = rs.Replaces()
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Merge returns a new rule set holding rs's rules followed by other's.
// Depth, recursion, link and date settings come from rs.
func (rs *RuleSet) Merge(other *RuleSet) *RuleSet {
	if other == nil {
		return rs
	}
	cp := rs.With()
	cp.removes = append(cp.removes, other.removes...)
	cp.replaces = append(cp.replaces, other.replaces...)
	return cp
}

// replacement returns the first replacement rule selecting at within an
// entity of type typeName.
func (rs *RuleSet) replacement(at Path, typeName string) (ReplaceRule, bool) {
	for _, r := range rs.replaces {
		if (r.Type == "" || r.Type == typeName) && r.Path.Matches(at) {
			return r, true
		}
	}
	return ReplaceRule{}, false
}

func (rs *RuleSet) removed(at Path, typeName string) bool {
	for _, r := range rs.removes {
		if (r.Type == "" || r.Type == typeName) && r.Path.Matches(at) {
			return true
		}
	}
	return false
}

// Purpose selects which rules an entity contributes.
type Purpose string

const (
	// PurposeDisplay is output for people, e.g. console tables.
	PurposeDisplay Purpose = "display"
	// PurposeRegistry is output re-ingested by the registry.
	PurposeRegistry Purpose = "registry"
)

// RulesProvider is implemented by entities that need extra rules for a
// purpose.
type RulesProvider interface {
	SerializeRules(p Purpose) *RuleSet
}

// ForEntity returns base merged with the rules e contributes for p.
func ForEntity(base *RuleSet, e entity.Entity, p Purpose) *RuleSet {
	if base == nil {
		base = Default()
	}
	if rp, ok := e.(RulesProvider); ok {
		return base.Merge(rp.SerializeRules(p))
	}
	return base
}
