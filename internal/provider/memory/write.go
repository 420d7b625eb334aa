package memory

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/dispatch"
	"github.com/roach88/lazysync/internal/entity"
)

// toRow converts an entity into a stored row. Reference fields keep only
// the ids of what they point at; relationship fields are not stored.
func toRow(e entity.Entity) map[string]any {
	t := e.EntityType()
	row := entity.ToMap(e)
	row[entity.FieldID] = e.EntityID()
	for _, ref := range references[t] {
		row[ref.field] = idsOf(row[ref.field])
	}
	for _, rel := range relationships[t] {
		delete(row, rel.field)
	}
	delete(row, entity.FieldCanonicalID)
	return row
}

func idsOf(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case entity.Entity:
		return x.EntityID().Value()
	case deferred.Unresolved:
		return x.LinkID().Value()
	case entity.ID:
		return x.Value()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = idsOf(item)
		}
		return out
	}
	return v
}

// nextID returns one more than the largest integer id of t. Callers hold
// mu for writing.
func (p *Provider) nextID(t *entity.Type) entity.ID {
	var top int64
	for _, row := range p.rows[t] {
		if id := row[entity.FieldID].(entity.ID); id.IsInt() && id.Int() > top {
			top = id.Int()
		}
	}
	return entity.IntID(top + 1)
}

func (p *Provider) insert(t *entity.Type, e entity.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.EntityID().IsZero() {
		e.SetEntityID(p.nextID(t))
	}
	if i := p.find(t, e.EntityID()); i >= 0 {
		p.rows[t][i] = toRow(e)
		return
	}
	p.rows[t] = append(p.rows[t], toRow(e))
	sortRows(p.rows[t])
}

func (p *Provider) create(t *entity.Type) dispatch.SingleFunc {
	return func(_ context.Context, c *entity.Context, arg any) (entity.Entity, error) {
		e := arg.(entity.Entity)
		if !e.EntityID().IsZero() {
			p.mu.RLock()
			exists := p.find(t, e.EntityID()) >= 0
			p.mu.RUnlock()
			if exists {
				return nil, fmt.Errorf("%s %s already exists", t.Name, e.EntityID())
			}
		}
		p.insert(t, e)
		e.Bind(p, c)
		return e, nil
	}
}

func (p *Provider) update(t *entity.Type) dispatch.SingleFunc {
	return func(_ context.Context, c *entity.Context, arg any) (entity.Entity, error) {
		e := arg.(entity.Entity)
		p.mu.Lock()
		defer p.mu.Unlock()
		i := p.find(t, e.EntityID())
		if i < 0 {
			return nil, fmt.Errorf("%s %s not found", t.Name, e.EntityID())
		}
		p.rows[t][i] = toRow(e)
		e.Bind(p, c)
		return e, nil
	}
}

func (p *Provider) delete(t *entity.Type) dispatch.SingleFunc {
	return func(_ context.Context, _ *entity.Context, arg any) (entity.Entity, error) {
		e := arg.(entity.Entity)
		if !p.remove(t, e.EntityID()) {
			return nil, fmt.Errorf("%s %s not found", t.Name, e.EntityID())
		}
		return e, nil
	}
}

func (p *Provider) remove(t *entity.Type, id entity.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.find(t, id)
	if i < 0 {
		return false
	}
	p.rows[t] = append(p.rows[t][:i], p.rows[t][i+1:]...)
	return true
}

func (p *Provider) createList(t *entity.Type) dispatch.ListFunc {
	create := p.create(t)
	return func(ctx context.Context, c *entity.Context, args ...any) iter.Seq2[entity.Entity, error] {
		return func(yield func(entity.Entity, error) bool) {
			for _, arg := range args {
				e, err := create(ctx, c, arg)
				if !yield(e, err) || err != nil {
					return
				}
			}
		}
	}
}

// deleteList deletes each entity and yields the ones it removed; missing
// records are skipped.
func (p *Provider) deleteList(t *entity.Type) dispatch.ListFunc {
	return func(_ context.Context, _ *entity.Context, args ...any) iter.Seq2[entity.Entity, error] {
		return func(yield func(entity.Entity, error) bool) {
			for _, arg := range args {
				e := arg.(entity.Entity)
				if !p.remove(t, e.EntityID()) {
					continue
				}
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}
