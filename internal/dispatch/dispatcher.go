package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/registry"
)

// DefaultPolicy is used when neither the context chain nor WithPolicy
// selects one.
const DefaultPolicy = entity.ResolveLate

// Dispatcher runs operations bound by registered providers.
//
// Thread-safety: registration and lookup are safe for concurrent use.
// Runs are expected to have a single logical thread of control.
type Dispatcher struct {
	mu       sync.RWMutex
	registry *registry.Registry
	queue    *deferred.Queue
	policy   entity.Policy
	tracer   trace.Tracer
	logger   *slog.Logger
	record   bool

	defs  map[entity.Provider]map[string]*Definition // provider -> type name -> definition
	bound mapset.Set[string]                         // "providerClass/TypeName"

	queueOpts []deferred.QueueOption
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the default resolution policy.
//
// Default: ResolveLate (DefaultPolicy)
func WithPolicy(p entity.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithTracer sets the tracer for operation and resolution spans.
// Default: otel.Tracer("lazysync") from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithErrorRecording records operation failures in the registry's error
// collection. Enabled by default.
func WithErrorRecording(enabled bool) Option {
	return func(d *Dispatcher) {
		d.record = enabled
	}
}

// WithQueueOptions configures the dispatcher's resolution queue.
func WithQueueOptions(opts ...deferred.QueueOption) Option {
	return func(d *Dispatcher) {
		d.queueOpts = append(d.queueOpts, opts...)
	}
}

// New creates a dispatcher that registers providers and entity types with
// reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		policy:   DefaultPolicy,
		record:   true,
		defs:     make(map[entity.Provider]map[string]*Definition),
		bound:    mapset.NewSet[string](),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("lazysync")
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	qopts := append([]deferred.QueueOption{deferred.WithLogger(d.logger)}, d.queueOpts...)
	d.queue = deferred.NewQueue(d, qopts...)
	return d
}

// Queue returns the dispatcher's resolution queue.
func (d *Dispatcher) Queue() *deferred.Queue {
	return d.queue
}

// Registry returns the registry providers are registered with.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Policy returns the default policy.
func (d *Dispatcher) Policy() entity.Policy {
	return d.policy
}

// Register registers p and every entity type it defines, then binds its
// operations.
func (d *Dispatcher) Register(ctx context.Context, p Provider) error {
	defs := p.Definitions()
	byType := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		if def == nil || def.Type == nil {
			return fmt.Errorf("register %s: definition without entity type", entity.ClassName(p))
		}
		if _, dup := byType[def.Type.Name]; dup {
			return fmt.Errorf("register %s: entity type %s defined twice", entity.ClassName(p), def.Type.Name)
		}
		byType[def.Type.Name] = def
	}

	if _, err := d.registry.RegisterProvider(ctx, p); err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := d.registry.RegisterEntityType(ctx, def.Type); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[p] = byType
	for name := range byType {
		d.bound.Add(entity.ClassName(p) + "/" + name)
	}
	d.logger.Debug("provider bound", "provider", entity.ClassName(p), "entity_types", len(byType))
	return nil
}

// Bound returns "providerClass/TypeName" for every bound definition,
// sorted.
func (d *Dispatcher) Bound() []string {
	out := d.bound.ToSlice()
	sort.Strings(out)
	return out
}

// Context returns a root execution context for p attached to the queue.
func (d *Dispatcher) Context(p entity.Provider) *entity.Context {
	return entity.NewContext(p, d.queue)
}

func (d *Dispatcher) definition(p entity.Provider, t *entity.Type) (*Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	byType, ok := d.defs[p]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", entity.ClassName(p), registry.ErrNotRegistered)
	}
	def, ok := byType[t.Name]
	if !ok {
		return nil, &NotImplementedError{
			Provider:   entity.ClassName(p),
			EntityType: t.Name,
			Method:     entity.OpGet.MethodName(t),
		}
	}
	return def, nil
}

func (d *Dispatcher) notImplemented(p entity.Provider, t *entity.Type, op entity.Operation) error {
	return &NotImplementedError{
		Provider:   entity.ClassName(p),
		EntityType: t.Name,
		Method:     op.MethodName(t),
	}
}

// startSpan opens an operation span.
func (d *Dispatcher) startSpan(ctx context.Context, c *entity.Context, t *entity.Type, op entity.Operation, policy entity.Policy) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "lazysync."+op.String(), trace.WithAttributes(
		attribute.String("lazysync.provider", entity.ClassName(c.Provider)),
		attribute.String("lazysync.entity_type", t.Name),
		attribute.String("lazysync.method", op.MethodName(t)),
		attribute.String("lazysync.policy", policy.String()),
	))
}

// resolve drains the queue from cp to a fixpoint inside a span.
func (d *Dispatcher) resolve(ctx context.Context, cp int64) error {
	ctx, span := d.tracer.Start(ctx, "lazysync.resolve", trace.WithAttributes(
		attribute.Int64("lazysync.checkpoint", cp),
	))
	defer span.End()

	before := d.queue.Stats()
	err := d.queue.ResolveToFixpoint(ctx, cp)
	after := d.queue.Stats()
	span.SetAttributes(
		attribute.Int("lazysync.resolved", after.Resolved-before.Resolved),
		attribute.Int("lazysync.fetches", after.Fetches-before.Fetches),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// recordError adds an operation failure to the registry's error collection.
func (d *Dispatcher) recordError(ctx context.Context, c *entity.Context, t *entity.Type, op entity.Operation, err error) {
	if !d.record || d.registry == nil {
		return
	}
	rec := registry.ErrorRecord{
		Level:      registry.LevelError,
		Message:    err.Error(),
		Provider:   entity.ClassName(c.Provider),
		EntityType: t.Name,
		Operation:  op.MethodName(t),
	}
	if _, rerr := d.registry.Record(ctx, rec); rerr != nil {
		d.logger.Warn("error not recorded", "error", rerr, "original", err)
	}
}

// checkEntityArg verifies a write argument is an entity of type t.
func checkEntityArg(t *entity.Type, op entity.Operation, arg any) (entity.Entity, error) {
	e, ok := arg.(entity.Entity)
	if !ok || e == nil {
		return nil, &InvalidArgumentError{Method: op.MethodName(t), Want: t.Name, Got: fmt.Sprintf("%T", arg)}
	}
	if e.EntityType() != t {
		return nil, &InvalidArgumentError{Method: op.MethodName(t), Want: t.Name, Got: e.EntityType().Name}
	}
	return e, nil
}

// Run runs the single-item operation op on t for c's provider and applies
// the effective resolution policy.
func (d *Dispatcher) Run(ctx context.Context, c *entity.Context, t *entity.Type, op entity.Operation, arg any) (entity.Entity, error) {
	if op.IsList() {
		return nil, &InvalidArgumentError{Method: op.MethodName(t), Want: "single-item operation", Got: op.String()}
	}
	def, err := d.definition(c.Provider, t)
	if err != nil {
		if IsNotImplemented(err) {
			return nil, d.notImplemented(c.Provider, t, op)
		}
		return nil, err
	}
	fn := def.single(op)
	if fn == nil {
		return nil, d.notImplemented(c.Provider, t, op)
	}

	if op.IsWrite() {
		if _, err := checkEntityArg(t, op, arg); err != nil {
			return nil, err
		}
	} else {
		id, err := entity.IDOf(arg)
		if err != nil {
			return nil, &InvalidArgumentError{Method: op.MethodName(t), Want: "entity id", Got: fmt.Sprintf("%T", arg)}
		}
		arg = id
	}

	policy := c.EffectivePolicy(d.policy)
	ctx, span := d.startSpan(ctx, c, t, op, policy)
	defer span.End()

	cp := d.queue.Checkpoint()
	oc := c.WithOperation(op, t, arg)
	e, err := fn(ctx, oc, arg)
	if err != nil {
		failSpan(span, err)
		d.recordError(ctx, c, t, op, err)
		return nil, fmt.Errorf("%s: %w", op.MethodName(t), err)
	}

	if policy != entity.DoNotResolve {
		if err := d.resolve(ctx, cp); err != nil {
			failSpan(span, err)
			return e, err
		}
	}
	return e, nil
}

// FetchEntity implements deferred.Fetcher through the get operation.
func (d *Dispatcher) FetchEntity(ctx context.Context, c *entity.Context, t *entity.Type, id entity.ID) (entity.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("fetch %s(%s): placeholder has no context", t.Name, id)
	}
	return d.Run(ctx, c.WithPolicy(entity.DoNotResolve), t, entity.OpGet, id)
}

// FetchRelationship implements deferred.Fetcher through the list get
// operation filtered by {ref.ForProperty: ref.ForID}.
func (d *Dispatcher) FetchRelationship(ctx context.Context, ref *deferred.RelationshipRef) ([]entity.Entity, error) {
	if ref.Context == nil {
		return nil, fmt.Errorf("fetch %s: placeholder has no context", ref)
	}
	c := ref.Context.WithPolicy(entity.DoNotResolve)
	filter := map[string]any{ref.ForProperty: ref.ForID.Value()}
	return d.RunCollectingList(ctx, c, ref.Type, entity.OpGetList, filter)
}
