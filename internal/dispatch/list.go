package dispatch

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/lazysync/internal/entity"
)

// once wraps seq so it can be ranged over a single time.
func once(seq iter.Seq2[entity.Entity, error]) iter.Seq2[entity.Entity, error] {
	var used atomic.Bool
	return func(yield func(entity.Entity, error) bool) {
		if used.Swap(true) {
			yield(nil, ErrSequenceConsumed)
			return
		}
		seq(yield)
	}
}

func fail(err error) iter.Seq2[entity.Entity, error] {
	return func(yield func(entity.Entity, error) bool) {
		yield(nil, err)
	}
}

// listFunc looks up the bound list function and validates write arguments.
func (d *Dispatcher) listFunc(c *entity.Context, t *entity.Type, op entity.Operation, args []any) (ListFunc, error) {
	if !op.IsList() {
		return nil, &InvalidArgumentError{Method: op.MethodName(t), Want: "list operation", Got: op.String()}
	}
	def, err := d.definition(c.Provider, t)
	if err != nil {
		if IsNotImplemented(err) {
			return nil, d.notImplemented(c.Provider, t, op)
		}
		return nil, err
	}
	fn := def.list(op)
	if fn == nil {
		return nil, d.notImplemented(c.Provider, t, op)
	}
	if op.IsWrite() {
		for _, arg := range args {
			if _, err := checkEntityArg(t, op, arg); err != nil {
				return nil, err
			}
		}
	}
	return fn, nil
}

// RunList runs the list operation op on t and returns its items as a lazy,
// once-only sequence. Nothing runs until the sequence is ranged over.
//
// Under ResolveEarly each item is yielded only after the placeholders
// deferred since the previous item are resolved. Under ResolveLate the
// whole operation is consumed, resolved once, and then replayed. Under
// DoNotResolve items pass straight through.
//
// An error is yielded as the final element.
func (d *Dispatcher) RunList(ctx context.Context, c *entity.Context, t *entity.Type, op entity.Operation, args ...any) iter.Seq2[entity.Entity, error] {
	fn, err := d.listFunc(c, t, op, args)
	if err != nil {
		return once(fail(err))
	}
	policy := c.EffectivePolicy(d.policy)

	return once(func(yield func(entity.Entity, error) bool) {
		ctx, span := d.startSpan(ctx, c, t, op, policy)
		defer span.End()

		count := 0
		defer func() { span.SetAttributes(attribute.Int("lazysync.items", count)) }()

		cp := d.queue.Checkpoint()
		oc := c.WithOperation(op, t, args...)
		inner := fn(ctx, oc, args...)

		stop := func(err error) {
			failSpan(span, err)
			yield(nil, err)
		}
		opFailed := func(err error) {
			d.recordError(ctx, c, t, op, err)
			stop(fmt.Errorf("%s: %w", op.MethodName(t), err))
		}

		switch policy {
		case entity.ResolveLate:
			var items []entity.Entity
			for e, err := range inner {
				if err != nil {
					opFailed(err)
					return
				}
				items = append(items, e)
			}
			if err := d.resolve(ctx, cp); err != nil {
				stop(err)
				return
			}
			for _, e := range items {
				count++
				if !yield(e, nil) {
					return
				}
			}

		case entity.ResolveEarly:
			for e, err := range inner {
				if err != nil {
					opFailed(err)
					return
				}
				if err := d.resolve(ctx, cp); err != nil {
					stop(err)
					return
				}
				cp = d.queue.Checkpoint()
				count++
				if !yield(e, nil) {
					return
				}
			}

		default:
			for e, err := range inner {
				if err != nil {
					opFailed(err)
					return
				}
				count++
				if !yield(e, nil) {
					return
				}
			}
		}
	})
}

// RunCollectingList materializes the list operation op on t into a slice
// and then applies the resolution policy once.
func (d *Dispatcher) RunCollectingList(ctx context.Context, c *entity.Context, t *entity.Type, op entity.Operation, args ...any) ([]entity.Entity, error) {
	fn, err := d.listFunc(c, t, op, args)
	if err != nil {
		return nil, err
	}
	policy := c.EffectivePolicy(d.policy)

	ctx, span := d.startSpan(ctx, c, t, op, policy)
	defer span.End()

	cp := d.queue.Checkpoint()
	oc := c.WithOperation(op, t, args...)
	items := []entity.Entity{}
	for e, err := range fn(ctx, oc, args...) {
		if err != nil {
			failSpan(span, err)
			d.recordError(ctx, c, t, op, err)
			return nil, fmt.Errorf("%s: %w", op.MethodName(t), err)
		}
		items = append(items, e)
	}
	span.SetAttributes(attribute.Int("lazysync.items", len(items)))

	if policy != entity.DoNotResolve {
		if err := d.resolve(ctx, cp); err != nil {
			failSpan(span, err)
			return items, err
		}
	}
	return items, nil
}
