package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/lazysync/internal/entity"
)

// Heartbeater is implemented by providers that can probe their backend.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// CheckHeartbeat returns a BACKEND_UNREACHABLE error if p's backend does
// not answer. A success is cached for ttl; failures are never cached, so
// the next call probes again. Providers without a heartbeat are assumed
// reachable. p must be registered.
func (r *Registry) CheckHeartbeat(ctx context.Context, p entity.Provider, ttl time.Duration) error {
	reg := p.Registration()
	if reg.IsZero() {
		return fmt.Errorf("heartbeat %s: %w", entity.ClassName(p), ErrNotRegistered)
	}
	hb, ok := p.(Heartbeater)
	if !ok {
		return nil
	}

	r.mu.Lock()
	until, cached := r.heartbeats[reg.Hash]
	now := r.now()
	r.mu.Unlock()

	if cached && now.Before(until) {
		return nil
	}

	if err := hb.Heartbeat(ctx); err != nil {
		r.mu.Lock()
		delete(r.heartbeats, reg.Hash)
		r.mu.Unlock()
		return &Error{
			Code:    ErrCodeBackendUnreachable,
			Message: "backend did not answer heartbeat",
			Subject: reg.Class,
			Err:     err,
		}
	}

	if ttl > 0 {
		r.mu.Lock()
		r.heartbeats[reg.Hash] = now.Add(ttl)
		r.mu.Unlock()
	}
	return nil
}
