package dispatch

import (
	"context"
	"iter"

	"github.com/roach88/lazysync/internal/entity"
)

// SingleFunc implements a single-item operation. For get, arg is an
// entity.ID (entity.NoID when not yet known); for writes it is an entity of
// the definition's type.
type SingleFunc func(ctx context.Context, c *entity.Context, arg any) (entity.Entity, error)

// ListFunc implements a list operation. For getList, args are filters
// (usually one map[string]any); for list writes they are entities of the
// definition's type. The returned sequence is produced on demand.
type ListFunc func(ctx context.Context, c *entity.Context, args ...any) iter.Seq2[entity.Entity, error]

// Definition binds a provider's operations for one entity type. Nil
// functions are unsupported operations.
type Definition struct {
	Type *entity.Type

	Create SingleFunc
	Get    SingleFunc
	Update SingleFunc
	Delete SingleFunc

	CreateList ListFunc
	GetList    ListFunc
	UpdateList ListFunc
	DeleteList ListFunc
}

func (d *Definition) single(op entity.Operation) SingleFunc {
	switch op {
	case entity.OpCreate:
		return d.Create
	case entity.OpGet:
		return d.Get
	case entity.OpUpdate:
		return d.Update
	case entity.OpDelete:
		return d.Delete
	}
	return nil
}

func (d *Definition) list(op entity.Operation) ListFunc {
	switch op {
	case entity.OpCreateList:
		return d.CreateList
	case entity.OpGetList:
		return d.GetList
	case entity.OpUpdateList:
		return d.UpdateList
	case entity.OpDeleteList:
		return d.DeleteList
	}
	return nil
}

// Operations returns the operations d binds, in declaration order.
func (d *Definition) Operations() []entity.Operation {
	var ops []entity.Operation
	for op := entity.OpCreate; op <= entity.OpDeleteList; op++ {
		if (op.IsList() && d.list(op) != nil) || (!op.IsList() && d.single(op) != nil) {
			ops = append(ops, op)
		}
	}
	return ops
}

// Provider is a backend adapter with bound operations.
type Provider interface {
	entity.Provider
	Definitions() []*Definition
}
