package entity

import "errors"

// ErrNoDeferrer is returned when a placeholder is deferred through a
// context that is not attached to a resolution queue.
var ErrNoDeferrer = errors.New("entity: context has no deferrer")

// Slot is a location that receives a resolved value: a variable, a struct
// field, a list element or a map entry.
type Slot interface {
	Set(v any)
}

// SlotFunc adapts a function to Slot.
type SlotFunc func(v any)

func (f SlotFunc) Set(v any) { f(v) }

// Deferrer accepts placeholders for later resolution. Implemented by the
// resolution queue.
type Deferrer interface {
	DeferEntity(c *Context, t *Type, id ID, slot Slot)
	DeferEntities(c *Context, t *Type, ids []ID, slot Slot)
	DeferRelationship(c *Context, t *Type, forType *Type, forProperty string, forID ID, slot Slot)
}

// Context is the execution context of one provider operation. Contexts are
// immutable; the With* methods return derived copies linked to their parent.
type Context struct {
	Operation Operation
	Args      []any
	Policy    Policy
	Provider  Provider
	Type      *Type
	// Entity is the owning entity when the operation runs on behalf of
	// another entity's relationship.
	Entity Entity

	parent   *Context
	deferrer Deferrer
}

// NewContext returns a root context for p. d may be nil for contexts that
// never defer.
func NewContext(p Provider, d Deferrer) *Context {
	return &Context{Provider: p, Policy: PolicyInherit, deferrer: d}
}

func (c *Context) derive() *Context {
	cp := *c
	cp.parent = c
	return &cp
}

// WithOperation returns a child context for op on t with args.
func (c *Context) WithOperation(op Operation, t *Type, args ...any) *Context {
	cp := c.derive()
	cp.Operation = op
	cp.Type = t
	cp.Args = args
	return cp
}

// WithPolicy returns a child context with policy p.
func (c *Context) WithPolicy(p Policy) *Context {
	cp := c.derive()
	cp.Policy = p
	return cp
}

// WithEntity returns a child context owned by e.
func (c *Context) WithEntity(e Entity) *Context {
	cp := c.derive()
	cp.Entity = e
	return cp
}

// Parent returns the context c was derived from, or nil.
func (c *Context) Parent() *Context {
	return c.parent
}

// Depth returns the number of ancestors of c.
func (c *Context) Depth() int {
	n := 0
	for p := c.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

// Nested reports whether c was derived from the context of another
// operation, as happens when a placeholder is fetched.
func (c *Context) Nested() bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.Type != nil {
			return true
		}
	}
	return false
}

// EffectivePolicy walks up the context chain and returns the first policy
// that is not PolicyInherit, or def.
func (c *Context) EffectivePolicy(def Policy) Policy {
	for p := c; p != nil; p = p.parent {
		if p.Policy != PolicyInherit {
			return p.Policy
		}
	}
	return def
}

// Defer writes a placeholder for (t, id) into slot and queues it.
func (c *Context) Defer(t *Type, id ID, slot Slot) error {
	if c.deferrer == nil {
		return ErrNoDeferrer
	}
	c.deferrer.DeferEntity(c, t, id, slot)
	return nil
}

// DeferList writes a list of placeholders for ids into slot and queues one
// placeholder per id.
func (c *Context) DeferList(t *Type, ids []ID, slot Slot) error {
	if c.deferrer == nil {
		return ErrNoDeferrer
	}
	c.deferrer.DeferEntities(c, t, ids, slot)
	return nil
}

// DeferRelationship writes a placeholder for the t entities related to the
// forType entity forID through forProperty.
func (c *Context) DeferRelationship(t *Type, forType *Type, forProperty string, forID ID, slot Slot) error {
	if c.deferrer == nil {
		return ErrNoDeferrer
	}
	c.deferrer.DeferRelationship(c, t, forType, forProperty, forID, slot)
	return nil
}
