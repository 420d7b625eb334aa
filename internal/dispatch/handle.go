package dispatch

import (
	"context"
	"iter"

	"github.com/roach88/lazysync/internal/entity"
)

// Handle binds a dispatcher, a provider context and an entity type, so
// callers write h.Get(ctx, 42) instead of spelling out the operation.
type Handle struct {
	d *Dispatcher
	c *entity.Context
	t *entity.Type
}

// For returns a handle for t on p.
func For(d *Dispatcher, p entity.Provider, t *entity.Type) Handle {
	return Handle{d: d, c: d.Context(p), t: t}
}

// WithPolicy returns a handle whose operations run under policy.
func (h Handle) WithPolicy(policy entity.Policy) Handle {
	h.c = h.c.WithPolicy(policy)
	return h
}

// Context returns the handle's root context.
func (h Handle) Context() *entity.Context { return h.c }

// Type returns the handle's entity type.
func (h Handle) Type() *entity.Type { return h.t }

// Get fetches one entity by id. id may be nil for "not yet known".
func (h Handle) Get(ctx context.Context, id any) (entity.Entity, error) {
	return h.d.Run(ctx, h.c, h.t, entity.OpGet, id)
}

func (h Handle) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return h.d.Run(ctx, h.c, h.t, entity.OpCreate, e)
}

func (h Handle) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return h.d.Run(ctx, h.c, h.t, entity.OpUpdate, e)
}

func (h Handle) Delete(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return h.d.Run(ctx, h.c, h.t, entity.OpDelete, e)
}

// GetList streams entities matching filters.
func (h Handle) GetList(ctx context.Context, filters ...any) iter.Seq2[entity.Entity, error] {
	return h.d.RunList(ctx, h.c, h.t, entity.OpGetList, filters...)
}

func (h Handle) CreateList(ctx context.Context, es ...entity.Entity) iter.Seq2[entity.Entity, error] {
	return h.d.RunList(ctx, h.c, h.t, entity.OpCreateList, toArgs(es)...)
}

func (h Handle) UpdateList(ctx context.Context, es ...entity.Entity) iter.Seq2[entity.Entity, error] {
	return h.d.RunList(ctx, h.c, h.t, entity.OpUpdateList, toArgs(es)...)
}

func (h Handle) DeleteList(ctx context.Context, es ...entity.Entity) iter.Seq2[entity.Entity, error] {
	return h.d.RunList(ctx, h.c, h.t, entity.OpDeleteList, toArgs(es)...)
}

// Collect materializes a list operation and resolves once.
func (h Handle) Collect(ctx context.Context, op entity.Operation, args ...any) ([]entity.Entity, error) {
	return h.d.RunCollectingList(ctx, h.c, h.t, op, args...)
}

func toArgs(es []entity.Entity) []any {
	args := make([]any, len(es))
	for i, e := range es {
		args[i] = e
	}
	return args
}
