package deferred

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/lazysync/internal/entity"
)

// DefaultMaxIterations is the default cap on fixpoint passes.
const DefaultMaxIterations = 100

// Fetcher performs the backend calls that resolve placeholders.
// Implemented by the operation dispatcher.
type Fetcher interface {
	// FetchEntity runs the provider's single-entity get operation. A nil
	// entity with a nil error means the backend has no such record.
	FetchEntity(ctx context.Context, c *entity.Context, t *entity.Type, id entity.ID) (entity.Entity, error)
	// FetchRelationship runs the provider's list get operation filtered by
	// {ref.ForProperty: ref.ForID}.
	FetchRelationship(ctx context.Context, ref *RelationshipRef) ([]entity.Entity, error)
}

// Stats counts queue activity.
type Stats struct {
	Enqueued int
	Resolved int
	Pending  int
	Fetches  int
	Passes   int
}

type pending struct {
	seq    int64
	entity *EntityRef
	rel    *RelationshipRef
}

func (p pending) ref() Unresolved {
	if p.entity != nil {
		return p.entity
	}
	return p.rel
}

// Queue holds unresolved placeholders in enqueue order.
//
// Queue implements entity.Deferrer, so contexts created with it as their
// deferrer enqueue here.
//
// Thread-safety: enqueueing is safe from any goroutine. A pass removes its
// batch from the queue before fetching and holds no lock while it calls the
// Fetcher, so fetches may enqueue nested placeholders or even start a
// nested pass without seeing the outer batch.
type Queue struct {
	mu      sync.Mutex
	clock   *Clock
	items   []pending
	fetcher Fetcher
	logger  *slog.Logger
	maxIter int
	stats   Stats
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMaxIterations caps ResolveToFixpoint passes. 0 disables the cap.
//
// Default: 100 (DefaultMaxIterations)
func WithMaxIterations(n int) QueueOption {
	return func(q *Queue) {
		q.maxIter = n
	}
}

// WithClock sets the checkpoint clock.
func WithClock(c *Clock) QueueOption {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// NewQueue creates an empty queue that resolves through f.
func NewQueue(f Fetcher, opts ...QueueOption) *Queue {
	q := &Queue{
		clock:   NewClock(),
		items:   make([]pending, 0, 64),
		fetcher: f,
		maxIter: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// Checkpoint returns the sequence number the next placeholder will get.
// Values never decrease.
func (q *Queue) Checkpoint() int64 {
	return q.clock.Current() + 1
}

// Len returns the number of pending placeholders.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.items)
	return s
}

func (q *Queue) enqueue(p pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	// Stamp under the lock so items stay sorted by seq.
	p.seq = q.clock.Next()
	if p.entity != nil {
		p.entity.seq = p.seq
	} else {
		p.rel.seq = p.seq
	}
	q.items = append(q.items, p)
	q.stats.Enqueued++
}

// placeholder writes ref into slot before queueing it. A failing slot is
// logged; the failure resurfaces when the resolved value is written.
func (q *Queue) placeholder(slot entity.Slot, v any) {
	if err := set(slot, v); err != nil {
		q.logger.Warn("placeholder not written", "error", err)
	}
}

// DeferEntity queues one placeholder for (t, id) and writes it into slot.
func (q *Queue) DeferEntity(c *entity.Context, t *entity.Type, id entity.ID, slot entity.Slot) {
	ref := &EntityRef{Provider: providerOf(c), Context: c, Type: t, ID: id, slot: slot}
	q.placeholder(slot, ref)
	q.enqueue(pending{entity: ref})
}

// DeferEntities writes a []any of placeholders into slot and queues one
// placeholder per id, each targeting its own list element.
func (q *Queue) DeferEntities(c *entity.Context, t *entity.Type, ids []entity.ID, slot entity.Slot) {
	list := make([]any, len(ids))
	refs := make([]*EntityRef, len(ids))
	for i, id := range ids {
		refs[i] = &EntityRef{Provider: providerOf(c), Context: c, Type: t, ID: id, slot: Index(list, i)}
		list[i] = refs[i]
	}
	q.placeholder(slot, list)
	for _, ref := range refs {
		q.enqueue(pending{entity: ref})
	}
}

// DeferRelationship queues a placeholder for the t entities related to the
// forType entity forID through forProperty.
func (q *Queue) DeferRelationship(c *entity.Context, t *entity.Type, forType *entity.Type, forProperty string, forID entity.ID, slot entity.Slot) {
	ref := &RelationshipRef{
		Provider:    providerOf(c),
		Context:     c,
		Type:        t,
		ForType:     forType,
		ForProperty: forProperty,
		ForID:       forID,
		slot:        slot,
	}
	q.placeholder(slot, ref)
	q.enqueue(pending{rel: ref})
}

func providerOf(c *entity.Context) entity.Provider {
	if c == nil {
		return nil
	}
	return c.Provider
}

// take removes and returns the pending items with seq >= from, keeping
// older items queued.
func (q *Queue) take(from int64) []pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Items are sorted by seq; find the first one at or after from.
	i := len(q.items)
	for i > 0 && q.items[i-1].seq >= from {
		i--
	}
	batch := make([]pending, len(q.items)-i)
	copy(batch, q.items[i:])
	// Nil out the tail so the backing array drops its references.
	for j := i; j < len(q.items); j++ {
		q.items[j] = pending{}
	}
	q.items = q.items[:i]
	return batch
}

// requeue puts back items a failed pass did not get to, keeping seq order.
func (q *Queue) requeue(rest []pending) {
	if len(rest) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]pending, 0, len(q.items)+len(rest))
	i, j := 0, 0
	for i < len(q.items) && j < len(rest) {
		if q.items[i].seq < rest[j].seq {
			merged = append(merged, q.items[i])
			i++
		} else {
			merged = append(merged, rest[j])
			j++
		}
	}
	merged = append(merged, q.items[i:]...)
	merged = append(merged, rest[j:]...)
	q.items = merged
}

type cacheKey struct {
	provider entity.Provider
	key      string
}

// ResolveFrom resolves, in enqueue order, every placeholder enqueued at or
// after checkpoint that is pending when the call starts. Placeholders the
// pass itself enqueues are left for the next pass. It reports whether any
// placeholder was resolved.
//
// On error the failing placeholder and everything after it stay queued.
func (q *Queue) ResolveFrom(ctx context.Context, checkpoint int64) (bool, error) {
	batch := q.take(checkpoint)
	if len(batch) == 0 {
		return false, nil
	}
	q.logger.Debug("resolution pass", "checkpoint", checkpoint, "placeholders", len(batch))

	entities := make(map[cacheKey]entity.Entity)
	relations := make(map[cacheKey][]entity.Entity)
	worked := false

	for i, item := range batch {
		if err := ctx.Err(); err != nil {
			q.requeue(batch[i:])
			return worked, err
		}

		var (
			did bool
			err error
		)
		if item.entity != nil {
			did, err = q.resolveEntity(ctx, item.entity, entities)
		} else {
			did, err = q.resolveRelationship(ctx, item.rel, relations)
		}
		if err != nil {
			q.requeue(batch[i:])
			return worked, &ResolveError{Ref: item.ref(), Err: err}
		}
		if did {
			worked = true
			q.mu.Lock()
			q.stats.Resolved++
			q.mu.Unlock()
		}
	}

	q.mu.Lock()
	q.stats.Passes++
	q.mu.Unlock()
	return worked, nil
}

func (q *Queue) resolveEntity(ctx context.Context, ref *EntityRef, cache map[cacheKey]entity.Entity) (bool, error) {
	if ref.resolved {
		return false, nil
	}

	var k cacheKey
	cacheable := !ref.ID.IsZero()
	if cacheable {
		k = cacheKey{provider: ref.Provider, key: entity.KeyFor(ref.Provider, ref.Type, ref.ID).String()}
		if e, ok := cache[k]; ok {
			return ref.resolve(e)
		}
	}

	e, err := q.fetchEntity(ctx, ref)
	if err != nil {
		return false, err
	}
	if cacheable {
		cache[k] = e
	}
	return ref.resolve(e)
}

func (q *Queue) fetchEntity(ctx context.Context, ref *EntityRef) (entity.Entity, error) {
	if q.fetcher == nil {
		return nil, fmt.Errorf("queue has no fetcher")
	}
	q.mu.Lock()
	q.stats.Fetches++
	q.mu.Unlock()
	return q.fetcher.FetchEntity(ctx, ref.Context, ref.Type, ref.ID)
}

func (q *Queue) resolveRelationship(ctx context.Context, ref *RelationshipRef, cache map[cacheKey][]entity.Entity) (bool, error) {
	if ref.resolved {
		return false, nil
	}

	k := cacheKey{
		provider: ref.Provider,
		key: ref.Type.Name + "|" + entity.KeyFor(ref.Provider, ref.ForType, ref.ForID).String() +
			"|" + ref.ForProperty,
	}
	if list, ok := cache[k]; ok {
		return ref.resolve(list)
	}

	if q.fetcher == nil {
		return false, fmt.Errorf("queue has no fetcher")
	}
	q.mu.Lock()
	q.stats.Fetches++
	q.mu.Unlock()
	list, err := q.fetcher.FetchRelationship(ctx, ref)
	if err != nil {
		return false, err
	}
	cache[k] = list
	return ref.resolve(list)
}

// ResolveToFixpoint runs passes starting at from, taking a fresh
// checkpoint before each pass, until a pass resolves nothing. It returns
// an IterationLimitError when the pass cap is reached first.
func (q *Queue) ResolveToFixpoint(ctx context.Context, from int64) error {
	quota := newPassQuota(q.maxIter)
	c := from
	for {
		if !quota.Check() {
			return &IterationLimitError{
				Checkpoint: from,
				Passes:     quota.Current() - 1,
				Limit:      q.maxIter,
				Pending:    q.Len(),
			}
		}
		next := q.Checkpoint()
		worked, err := q.ResolveFrom(ctx, c)
		if err != nil {
			return err
		}
		if !worked {
			return nil
		}
		c = next
	}
}

// ResolveAll resolves every pending placeholder to a fixpoint.
func (q *Queue) ResolveAll(ctx context.Context) error {
	return q.ResolveToFixpoint(ctx, 0)
}
