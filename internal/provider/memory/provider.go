package memory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/dispatch"
	"github.com/roach88/lazysync/internal/entity"
)

// ErrOffline is returned by Heartbeat while the provider is marked offline.
var ErrOffline = errors.New("memory backend offline")

// reference is a row field holding the id (or ids) of another record.
type reference struct {
	field  string
	target *entity.Type
	list   bool
}

// relationship is a field filled with the target records whose property
// holds the owner's id.
type relationship struct {
	field    string
	target   *entity.Type
	property string
}

var references = map[*entity.Type][]reference{
	UserType: {{field: "Team", target: TeamType}},
	PostType: {{field: "Author", target: UserType}, {field: "Mentions", target: UserType, list: true}},
}

var relationships = map[*entity.Type][]relationship{
	TeamType: {{field: "Members", target: UserType, property: "Team"}},
	UserType: {{field: "Posts", target: PostType, property: "Author"}},
}

// Provider serves a Dataset. It is safe for concurrent use.
type Provider struct {
	entity.ProviderBase

	name  string
	dates entity.DateFormatter

	mu   sync.RWMutex
	rows map[*entity.Type][]map[string]any

	offline atomic.Bool
	reads   atomic.Int64
}

// New returns a provider serving ds.
func New(ds *Dataset) (*Provider, error) {
	rows, err := ds.normalize()
	if err != nil {
		return nil, err
	}
	p := &Provider{name: ds.Name, rows: rows}
	if ds.DateLayout != "" {
		p.dates = entity.DateLayout(ds.DateLayout)
	}
	return p, nil
}

// Open loads the dataset at path and returns a provider serving it.
func Open(path string) (*Provider, error) {
	ds, err := LoadDataset(path)
	if err != nil {
		return nil, err
	}
	return New(ds)
}

func (p *Provider) BackendIdentity() []string {
	return []string{"memory", p.name}
}

// DateFormatter returns the dataset's date layout, or nil to use the
// default.
func (p *Provider) DateFormatter() entity.DateFormatter {
	return p.dates
}

// SetOffline makes Heartbeat fail until called again with false.
func (p *Provider) SetOffline(offline bool) {
	p.offline.Store(offline)
}

func (p *Provider) Heartbeat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.offline.Load() {
		return ErrOffline
	}
	return nil
}

// Reads returns the number of records produced so far.
func (p *Provider) Reads() int64 {
	return p.reads.Load()
}

// Len returns the number of stored records of type t.
func (p *Provider) Len(t *entity.Type) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rows[t])
}

func (p *Provider) Definitions() []*dispatch.Definition {
	return []*dispatch.Definition{
		{
			Type:    TeamType,
			Get:     p.getter(TeamType),
			GetList: p.lister(TeamType),
		},
		{
			Type:       UserType,
			Create:     p.create(UserType),
			Get:        p.getter(UserType),
			Update:     p.update(UserType),
			Delete:     p.delete(UserType),
			GetList:    p.lister(UserType),
			DeleteList: p.deleteList(UserType),
		},
		{
			Type:       PostType,
			Get:        p.getter(PostType),
			GetList:    p.lister(PostType),
			CreateList: p.createList(PostType),
		},
	}
}

// find returns the index of the row with id, or -1. Callers hold mu.
func (p *Provider) find(t *entity.Type, id entity.ID) int {
	for i, row := range p.rows[t] {
		if row[entity.FieldID].(entity.ID) == id {
			return i
		}
	}
	return -1
}

func (p *Provider) getter(t *entity.Type) dispatch.SingleFunc {
	return func(_ context.Context, c *entity.Context, arg any) (entity.Entity, error) {
		id := arg.(entity.ID)
		if id.IsZero() {
			return nil, nil
		}
		p.mu.RLock()
		i := p.find(t, id)
		var row map[string]any
		if i >= 0 {
			row = copyRow(p.rows[t][i])
		}
		p.mu.RUnlock()
		if row == nil {
			return nil, nil
		}
		return p.hydrate(c, t, row)
	}
}

// lister filters by the first argument, a map of field name to value.
// Values compare by their printed form, so 1 matches int64(1) and an
// entity.ID of 1.
func (p *Provider) lister(t *entity.Type) dispatch.ListFunc {
	return func(ctx context.Context, c *entity.Context, args ...any) iter.Seq2[entity.Entity, error] {
		return func(yield func(entity.Entity, error) bool) {
			var filter map[string]any
			if len(args) > 0 {
				f, ok := args[0].(map[string]any)
				if !ok {
					yield(nil, fmt.Errorf("filter must be map[string]any, got %T", args[0]))
					return
				}
				filter = f
			}
			p.mu.RLock()
			var rows []map[string]any
			for _, row := range p.rows[t] {
				if matches(row, filter) {
					rows = append(rows, copyRow(row))
				}
			}
			p.mu.RUnlock()

			for _, row := range rows {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				e, err := p.hydrate(c, t, row)
				if !yield(e, err) || err != nil {
					return
				}
			}
		}
	}
}

func matches(row, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(row[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// hydrate builds an entity from a stored row and defers its references.
func (p *Provider) hydrate(c *entity.Context, t *entity.Type, row map[string]any) (entity.Entity, error) {
	refs := make(map[string]any)
	for _, ref := range references[t] {
		refs[ref.field] = row[ref.field]
		delete(row, ref.field)
	}
	e, err := entity.Hydrate(t, p, c, row)
	if err != nil {
		return nil, err
	}
	p.reads.Add(1)

	for _, ref := range references[t] {
		if err := deferReference(c, e, ref, refs[ref.field]); err != nil {
			return nil, err
		}
	}
	if c.Nested() {
		return e, nil
	}
	for _, rel := range relationships[t] {
		if err := c.DeferRelationship(rel.target, t, rel.property, e.EntityID(), deferred.Field(e, rel.field)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func deferReference(c *entity.Context, e entity.Entity, ref reference, raw any) error {
	if raw == nil {
		return nil
	}
	slot := deferred.Field(e, ref.field)
	if !ref.list {
		id, err := entity.IDOf(raw)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.EntityType().Name, ref.field, err)
		}
		return c.Defer(ref.target, id, slot)
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%s.%s: expected a list of ids, got %T", e.EntityType().Name, ref.field, raw)
	}
	ids := make([]entity.ID, len(list))
	for i, v := range list {
		id, err := entity.IDOf(v)
		if err != nil {
			return fmt.Errorf("%s.%s[%d]: %w", e.EntityType().Name, ref.field, i, err)
		}
		ids[i] = id
	}
	return c.DeferList(ref.target, ids, slot)
}
