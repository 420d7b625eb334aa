// Package deferred implements placeholders for entities that have not been
// fetched yet and the queue that resolves them.
//
// A provider that knows an id but not the record behind it defers the
// lookup: the queue writes an unresolved placeholder into the target slot
// immediately, so the caller's structure is always well-formed, and
// remembers where the resolved value must go.
//
// # Checkpoints
//
// Every enqueued placeholder is stamped with a strictly increasing
// sequence number from the queue's Clock. Checkpoint returns the number the
// next placeholder will receive, so ResolveFrom(c) covers exactly the
// placeholders enqueued after c was taken and never touches older ones.
//
// # Fixpoint
//
// Resolving a placeholder calls back into the provider's single-entity get
// operation (or its list get, for relationships), which may defer further
// placeholders. ResolveToFixpoint repeats passes with a checkpoint taken
// before each pass until a pass does no work. The number of passes is
// capped (WithMaxIterations); exceeding the cap returns an
// IterationLimitError instead of looping forever on a backend that keeps
// deferring new records.
//
// Within a pass, placeholders resolve in enqueue order and placeholders for
// the same (provider, type, id) share a single fetch.
package deferred
