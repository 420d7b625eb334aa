package serialize

import "strings"

// ListMarker addresses every element of a list in a path.
const ListMarker = "[]"

// Path is a sequence of field names and list markers.
type Path []string

// ParsePath splits a dotted path: "Owner", "Tags.[]", "Posts.[].Author".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Matches reports whether the rule path p selects the node at. A single
// segment matches the last segment of at; longer paths match at exactly.
func (p Path) Matches(at Path) bool {
	if len(p) == 0 || len(at) == 0 {
		return false
	}
	if len(p) == 1 {
		return at[len(at)-1] == p[0]
	}
	if len(p) != len(at) {
		return false
	}
	for i := range p {
		if p[i] != at[i] {
			return false
		}
	}
	return true
}

// child returns p extended by seg without aliasing p's backing array.
func (p Path) child(seg string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}
