package entity

// Identifiable entities carry a provider-assigned id and, optionally, the id
// used by the source-of-truth backend for the same logical record.
type Identifiable interface {
	EntityID() ID
	SetEntityID(ID)
	CanonicalID() ID
	SetCanonicalID(ID)
}

// Providable entities remember the provider and execution context that
// produced them.
type Providable interface {
	Provider() Provider
	Context() *Context
	Bind(p Provider, c *Context)
}

// Serializable entities expose their field-mapping table.
type Serializable interface {
	EntityType() *Type
}

// Extensible entities accept fields their type does not declare.
type Extensible interface {
	Extras() map[string]any
	Extra(name string) (any, bool)
	SetExtra(name string, value any)
}

// Entity is the contract every provider-produced value satisfies.
type Entity interface {
	Identifiable
	Providable
	Serializable
}

// Named entities contribute "@name" to friendly link records.
type Named interface {
	EntityName() string
}

// Described entities contribute "@description" to friendly link records.
type Described interface {
	EntityDescription() string
}

// Base implements Identifiable, Providable and Extensible. Concrete entity
// types embed it and implement EntityType.
type Base struct {
	id          ID
	canonicalID ID
	provider    Provider
	ctx         *Context
	extra       map[string]any
}

func (b *Base) EntityID() ID { return b.id }

func (b *Base) SetEntityID(id ID) { b.id = id }

func (b *Base) CanonicalID() ID { return b.canonicalID }

func (b *Base) SetCanonicalID(id ID) { b.canonicalID = id }

func (b *Base) Provider() Provider { return b.provider }

func (b *Base) Context() *Context { return b.ctx }

// Bind records the provider and execution context that produced the entity.
func (b *Base) Bind(p Provider, c *Context) {
	b.provider = p
	b.ctx = c
}

// Extras returns the undeclared fields. The map must not be modified.
func (b *Base) Extras() map[string]any { return b.extra }

func (b *Base) Extra(name string) (any, bool) {
	v, ok := b.extra[name]
	return v, ok
}

func (b *Base) SetExtra(name string, value any) {
	if b.extra == nil {
		b.extra = make(map[string]any)
	}
	b.extra[name] = value
}

// Key identifies a logical record across instances.
type Key struct {
	ProviderHash string
	Type         string
	ID           string
}

// String renders the key as "providerHash/Type/id".
func (k Key) String() string {
	return k.ProviderHash + "/" + k.Type + "/" + k.ID
}

// KeyOf returns e's identity key. ok is false when e has no id yet, in
// which case only instance identity is meaningful.
func KeyOf(e Entity) (k Key, ok bool) {
	id := e.EntityID()
	if id.IsZero() {
		return Key{}, false
	}
	return KeyFor(e.Provider(), e.EntityType(), id), true
}

// KeyFor returns the identity key an entity of type t with id would have
// if produced by p.
func KeyFor(p Provider, t *Type, id ID) Key {
	var hash string
	if p != nil {
		hash = p.Registration().Hash
	}
	return Key{ProviderHash: hash, Type: t.Name, ID: id.key()}
}

// Same reports whether a and b represent the same logical record.
func Same(a, b Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	ka, okA := KeyOf(a)
	kb, okB := KeyOf(b)
	return okA && okB && ka == kb
}
