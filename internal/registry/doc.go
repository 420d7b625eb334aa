// Package registry assigns stable identities to providers and entity types
// and records one row per run in the embedded store.
//
// A Registry is explicit instance state: nothing is cached at package
// level, so several independent registries can live in one process.
//
// Run lifecycle:
//
//	NotStarted --(first access)--> Open --(Close or Release)--> Closed
//
// The run row is inserted on first real use (registration, error
// recording, or RunID), so a registry that is never touched writes nothing.
// Close finalizes the row exactly once. Release is the deferred fallback:
// it closes a still-open run with exit status 1 and then closes the store.
// A closed registry cannot be reopened.
package registry
