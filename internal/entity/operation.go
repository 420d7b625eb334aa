package entity

import "fmt"

// Operation identifies a provider operation on an entity type.
type Operation int

const (
	OpCreate Operation = iota + 1
	OpGet
	OpUpdate
	OpDelete
	OpCreateList
	OpGetList
	OpUpdateList
	OpDeleteList
)

var operationNames = map[Operation]string{
	OpCreate:     "create",
	OpGet:        "get",
	OpUpdate:     "update",
	OpDelete:     "delete",
	OpCreateList: "createList",
	OpGetList:    "getList",
	OpUpdateList: "updateList",
	OpDeleteList: "deleteList",
}

// String returns the operation's short name ("get", "getList", ...).
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// IsList reports whether the operation works on a sequence of entities.
func (o Operation) IsList() bool {
	return o >= OpCreateList && o <= OpDeleteList
}

// IsWrite reports whether the operation takes entities as input.
func (o Operation) IsWrite() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete, OpCreateList, OpUpdateList, OpDeleteList:
		return true
	}
	return false
}

// Single returns the single-item form of a list operation.
func (o Operation) Single() Operation {
	if o.IsList() {
		return o - (OpCreateList - OpCreate)
	}
	return o
}

// MethodName returns the conventional provider method name for the
// operation on t: "getWidget" for single items, "getWidgets" for lists.
func (o Operation) MethodName(t *Type) string {
	verb := o.Single().String()
	if o.IsList() {
		return verb + t.Plural
	}
	return verb + t.Name
}

// Policy controls when deferred placeholders produced by an operation are
// resolved.
type Policy int

const (
	// PolicyInherit uses the policy of the enclosing scope.
	PolicyInherit Policy = iota
	// DoNotResolve leaves placeholders for the caller to resolve.
	DoNotResolve
	// ResolveEarly resolves before each list item is handed to the caller.
	ResolveEarly
	// ResolveLate resolves once after the operation completes.
	ResolveLate
)

var policyNames = map[Policy]string{
	PolicyInherit: "inherit",
	DoNotResolve:  "do-not-resolve",
	ResolveEarly:  "resolve-early",
	ResolveLate:   "resolve-late",
}

// String returns the policy's configuration name.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses a configuration name such as "resolve-early".
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if name == s && p != PolicyInherit {
			return p, nil
		}
	}
	return PolicyInherit, fmt.Errorf("unknown resolution policy %q", s)
}
