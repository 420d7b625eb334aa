package deferred

import (
	"fmt"

	"github.com/roach88/lazysync/internal/entity"
)

// failingSlot is implemented by slots whose writes can fail. The queue
// checks Err after every Set.
type failingSlot interface {
	entity.Slot
	Err() error
}

func set(s entity.Slot, v any) error {
	if s == nil {
		return nil
	}
	s.Set(v)
	if fs, ok := s.(failingSlot); ok {
		return fs.Err()
	}
	return nil
}

type varSlot struct{ p *any }

func (s varSlot) Set(v any) { *s.p = v }

// Var returns a slot writing to *p.
func Var(p *any) entity.Slot {
	return varSlot{p: p}
}

type indexSlot struct {
	list []any
	i    int
}

func (s indexSlot) Set(v any) { s.list[s.i] = v }

// Index returns a slot writing to list[i]. The slot shares list's backing
// array, so copies of the slice header observe the write.
func Index(list []any, i int) entity.Slot {
	return indexSlot{list: list, i: i}
}

type keySlot struct {
	m map[string]any
	k string
}

func (s keySlot) Set(v any) { s.m[s.k] = v }

// Key returns a slot writing to m[k].
func Key(m map[string]any, k string) entity.Slot {
	return keySlot{m: m, k: k}
}

// fieldSlot writes a declared field through its setter, or an extension
// field when the type does not declare name.
type fieldSlot struct {
	e    entity.Entity
	name string
	err  error
}

func (s *fieldSlot) Set(v any) {
	s.err = nil
	if f, ok := s.e.EntityType().Field(s.name); ok {
		if f.Set == nil {
			s.err = fmt.Errorf("field %s.%s is read-only", s.e.EntityType().Name, s.name)
			return
		}
		s.err = f.Set(s.e, v)
		return
	}
	if ext, ok := s.e.(entity.Extensible); ok {
		ext.SetExtra(s.name, v)
		return
	}
	s.err = fmt.Errorf("%s has no field %q", s.e.EntityType().Name, s.name)
}

func (s *fieldSlot) Err() error { return s.err }

// Field returns a slot writing to e's field name.
func Field(e entity.Entity, name string) entity.Slot {
	return &fieldSlot{e: e, name: name}
}
