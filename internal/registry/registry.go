package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/lazysync/internal/canon"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/store"
)

type runState int

const (
	runNotStarted runState = iota
	runOpen
	runClosed
)

// Registry owns one store and the run recorded in it.
//
// Thread-safety: methods are safe for concurrent use, though a run is
// expected to have a single logical thread of control.
type Registry struct {
	mu    sync.Mutex
	store *store.Store

	now     func() time.Time
	uuids   UUIDGenerator
	logger  *slog.Logger
	command string
	args    []string
	dedup   bool
	mirror  bool

	state   runState
	runID   int64
	runUUID string

	providers map[string]entity.Provider // by hash
	types     map[string]int64           // by class

	records  []ErrorRecord
	seen     map[string]bool
	errors   int
	warnings int

	heartbeats map[string]time.Time // provider hash -> valid until
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithUUIDGenerator sets the run UUID source.
func WithUUIDGenerator(g UUIDGenerator) Option {
	return func(r *Registry) {
		r.uuids = g
	}
}

// WithLogger sets the logger used for lifecycle messages and mirrored
// error records. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithCommand records the command line of the run.
func WithCommand(command string, args ...string) Option {
	return func(r *Registry) {
		r.command = command
		r.args = args
	}
}

// WithDeduplication drops error records structurally equal to one already
// collected.
func WithDeduplication(enabled bool) Option {
	return func(r *Registry) {
		r.dedup = enabled
	}
}

// WithMirror logs every collected error record.
func WithMirror(enabled bool) Option {
	return func(r *Registry) {
		r.mirror = enabled
	}
}

// New creates a registry over st. The registry takes ownership of st and
// closes it in Release.
func New(st *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:      st,
		now:        time.Now,
		uuids:      UUIDv7Generator{},
		command:    "lazysync",
		providers:  make(map[string]entity.Provider),
		types:      make(map[string]int64),
		seen:       make(map[string]bool),
		heartbeats: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Open opens the database at path and returns a registry over it.
func Open(path string, storeOpts []store.Option, opts ...Option) (*Registry, error) {
	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return New(st, opts...), nil
}

// Store returns the underlying store.
func (r *Registry) Store() *store.Store {
	return r.store
}

// ensureRun opens the run row on first access. Caller holds r.mu.
func (r *Registry) ensureRun(ctx context.Context) error {
	switch r.state {
	case runOpen:
		return nil
	case runClosed:
		return &Error{Code: ErrCodeRunClosed, Message: "registry run already closed", Subject: r.runUUID}
	}

	runUUID := r.uuids.Generate()
	id, err := r.store.InsertRun(ctx, runUUID, r.command, r.args, r.now())
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	r.state = runOpen
	r.runID = id
	r.runUUID = runUUID
	r.logger.Debug("run opened", "run_id", id, "run_uuid", runUUID, "command", r.command)
	return nil
}

// RunID returns the id of the current run, opening it if necessary.
func (r *Registry) RunID(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureRun(ctx); err != nil {
		return 0, err
	}
	return r.runID, nil
}

// RunUUID returns the UUID of the current run, or "" before first access.
func (r *Registry) RunUUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runUUID
}

// ProviderHash computes p's stable hash from its concrete type and backend
// identity. The same backend instance hashes identically across runs.
func ProviderHash(p entity.Provider) (string, error) {
	return canon.Hash(canon.DomainProvider, []any{entity.QualifiedClassName(p), p.BackendIdentity()})
}

// RegisterProvider assigns p its stable id and records it in the store.
// A second provider with the same hash is a conflict.
func (r *Registry) RegisterProvider(ctx context.Context, p entity.Provider) (entity.Registration, error) {
	hash, err := ProviderHash(p)
	if err != nil {
		return entity.Registration{}, fmt.Errorf("register provider: %w", err)
	}
	class := entity.QualifiedClassName(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.providers[hash]; dup {
		return entity.Registration{}, &Error{
			Code:    ErrCodeProviderConflict,
			Message: "provider already registered",
			Subject: class + " " + hash,
		}
	}
	if err := r.ensureRun(ctx); err != nil {
		return entity.Registration{}, err
	}

	id, err := r.store.UpsertProvider(ctx, hash, class, r.now())
	if err != nil {
		return entity.Registration{}, fmt.Errorf("register provider %s: %w", class, err)
	}

	reg := entity.Registration{ID: id, Hash: hash, Class: class}
	p.SetRegistration(reg)
	r.providers[hash] = p
	r.logger.Debug("provider registered", "provider", class, "provider_id", id, "hash", hash)
	return reg, nil
}

// Provider returns the registered provider with the given hash.
func (r *Registry) Provider(hash string) (entity.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[hash]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", hash, ErrNotRegistered)
	}
	return p, nil
}

// RegisterEntityType assigns t's class its stable id. Registering the same
// class again returns the cached id without touching the store.
func (r *Registry) RegisterEntityType(ctx context.Context, t *entity.Type) (int64, error) {
	if err := t.Validate(); err != nil {
		subject := ""
		if t != nil {
			subject = t.Name
		}
		return 0, &Error{
			Code:    ErrCodeInvalidEntityType,
			Message: "entity type does not satisfy the entity contract",
			Subject: subject,
			Err:     err,
		}
	}
	class := t.Class()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.types[class]; ok {
		return id, nil
	}
	if err := r.ensureRun(ctx); err != nil {
		return 0, err
	}

	id, err := r.store.UpsertEntityType(ctx, class, r.now())
	if err != nil {
		return 0, fmt.Errorf("register entity type %s: %w", class, err)
	}
	r.types[class] = id
	r.logger.Debug("entity type registered", "entity_type", class, "entity_type_id", id)
	return id, nil
}

// EntityTypeID returns the id assigned to t's class.
func (r *Registry) EntityTypeID(t *entity.Type) (int64, error) {
	class := t.Class()
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.types[class]
	if !ok {
		return 0, fmt.Errorf("entity type %s: %w", class, ErrNotRegistered)
	}
	return id, nil
}

// Record appends rec to the run's error collection. It returns false when
// deduplication dropped rec as a duplicate; duplicates are neither counted
// nor mirrored.
func (r *Registry) Record(ctx context.Context, rec ErrorRecord) (bool, error) {
	if rec.Level == "" {
		rec.Level = LevelError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureRun(ctx); err != nil {
		return false, err
	}

	if r.dedup {
		h, err := rec.hash()
		if err != nil {
			return false, fmt.Errorf("record error: %w", err)
		}
		if r.seen[h] {
			return false, nil
		}
		r.seen[h] = true
	}

	if rec.Time.IsZero() {
		rec.Time = r.now()
	}
	r.records = append(r.records, rec)
	switch rec.Level {
	case LevelError:
		r.errors++
	case LevelWarning:
		r.warnings++
	}
	if r.mirror {
		rec.mirror(ctx, r.logger)
	}
	return true, nil
}

// Errors returns a copy of the collected records in arrival order.
func (r *Registry) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Counts returns the error and warning counters.
func (r *Registry) Counts() (errors, warnings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors, r.warnings
}

// Close finalizes the run with exitStatus, persisting the counters and the
// JSON error list. A registry whose run never opened is marked closed
// without writing. Closing twice returns a RUN_CLOSED error.
func (r *Registry) Close(ctx context.Context, exitStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(ctx, exitStatus)
}

func (r *Registry) closeLocked(ctx context.Context, exitStatus int) error {
	switch r.state {
	case runClosed:
		return &Error{Code: ErrCodeRunClosed, Message: "registry run already closed", Subject: r.runUUID}
	case runNotStarted:
		r.state = runClosed
		return nil
	}

	// The run counts as closed even if the write below fails, so a
	// deferred Release never records a second outcome.
	r.state = runClosed

	var errorsJSON string
	if len(r.records) > 0 {
		var err error
		if errorsJSON, err = encodeRecords(r.records); err != nil {
			return fmt.Errorf("close run: %w", err)
		}
	}

	err := r.store.FinishRun(ctx, r.runID, store.RunResult{
		FinishedAt:   r.now(),
		ExitStatus:   exitStatus,
		ErrorCount:   r.errors,
		WarningCount: r.warnings,
		ErrorsJSON:   errorsJSON,
	})
	if err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	r.logger.Debug("run closed", "run_id", r.runID, "exit_status", exitStatus,
		"errors", r.errors, "warnings", r.warnings)
	return nil
}

// Release closes a still-open run with exit status 1, then closes the
// store. It is meant to be deferred by the registry's owner and is safe to
// call after Close. The final write ignores cancellation of ctx, so an
// interrupted run is still closed.
func (r *Registry) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var closeErr error
	if r.state != runClosed {
		if r.state == runOpen {
			r.logger.Warn("run not closed explicitly, closing with exit status 1", "run_id", r.runID)
		}
		closeErr = r.closeLocked(ctx, 1)
	}
	if r.store == nil {
		return closeErr
	}
	if err := r.store.Close(); err != nil && closeErr == nil {
		closeErr = fmt.Errorf("release registry: %w", err)
	}
	r.store = nil
	return closeErr
}
