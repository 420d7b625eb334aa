package deferred

import (
	"fmt"

	"github.com/roach88/lazysync/internal/entity"
)

// Unresolved is implemented by placeholders. Serializers render an
// unresolved placeholder as a link to LinkType/LinkID without fetching.
type Unresolved interface {
	LinkType() *entity.Type
	LinkID() entity.ID
	Resolved() bool
	Seq() int64
}

// EntityRef stands in for one entity of Type with ID.
type EntityRef struct {
	Provider entity.Provider
	Context  *entity.Context
	Type     *entity.Type
	ID       entity.ID

	slot     entity.Slot
	seq      int64
	resolved bool
	value    entity.Entity
}

func (r *EntityRef) LinkType() *entity.Type { return r.Type }

func (r *EntityRef) LinkID() entity.ID { return r.ID }

func (r *EntityRef) Resolved() bool { return r.resolved }

func (r *EntityRef) Seq() int64 { return r.seq }

// Value returns the resolved entity, or nil before resolution or when the
// backend had no such record.
func (r *EntityRef) Value() entity.Entity { return r.value }

// resolve writes e into the slot. It is a no-op once resolved.
func (r *EntityRef) resolve(e entity.Entity) (bool, error) {
	if r.resolved {
		return false, nil
	}
	var v any
	if e != nil {
		v = e
	}
	if err := set(r.slot, v); err != nil {
		return false, err
	}
	r.value = e
	r.resolved = true
	return true, nil
}

func (r *EntityRef) String() string {
	return fmt.Sprintf("%s(%s)", r.Type.Name, r.ID)
}

// RelationshipRef stands in for the Type entities related to the ForType
// entity ForID through ForProperty.
type RelationshipRef struct {
	Provider    entity.Provider
	Context     *entity.Context
	Type        *entity.Type
	ForType     *entity.Type
	ForProperty string
	ForID       entity.ID

	slot     entity.Slot
	seq      int64
	resolved bool
	value    []entity.Entity
}

// LinkType returns the owning entity's type: an unresolved relationship
// links to its owner.
func (r *RelationshipRef) LinkType() *entity.Type { return r.ForType }

func (r *RelationshipRef) LinkID() entity.ID { return r.ForID }

func (r *RelationshipRef) Resolved() bool { return r.resolved }

func (r *RelationshipRef) Seq() int64 { return r.seq }

// Value returns the resolved related entities.
func (r *RelationshipRef) Value() []entity.Entity { return r.value }

// resolve writes list into the slot as a []any. It is a no-op once
// resolved.
func (r *RelationshipRef) resolve(list []entity.Entity) (bool, error) {
	if r.resolved {
		return false, nil
	}
	out := make([]any, len(list))
	for i, e := range list {
		out[i] = e
	}
	if err := set(r.slot, out); err != nil {
		return false, err
	}
	r.value = list
	r.resolved = true
	return true, nil
}

func (r *RelationshipRef) String() string {
	return fmt.Sprintf("%s(%s).%s -> %s", r.ForType.Name, r.ForID, r.ForProperty, r.Type.Plural)
}

func describe(u Unresolved) string {
	if s, ok := u.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%s(%s)", u.LinkType().Name, u.LinkID())
}
