// Package dispatch runs provider operations for entity types and applies
// the resolution policy around them.
//
// A provider binds its operations per entity type through Definitions.
// The dispatcher looks up the bound function for an operation, runs it
// with a derived execution context, and then, depending on the effective
// policy, drains the resolution queue from the checkpoint taken before
// the call:
//
//   - DoNotResolve: return immediately; placeholders stay queued.
//   - ResolveEarly: for list operations, resolve before each item is
//     yielded, so no placeholder reachable from a yielded item is left
//     unresolved.
//   - ResolveLate: run to completion, then resolve once.
//
// Single-item operations resolve once unless the policy is DoNotResolve.
//
// List operations return lazy iter.Seq2 sequences that can be ranged over
// once; a second range yields ErrSequenceConsumed.
//
// The dispatcher is also the queue's Fetcher: placeholders resolve through
// the provider's get operation (and its list get for relationships),
// always under DoNotResolve so nested placeholders are left to the
// enclosing fixpoint loop.
package dispatch
