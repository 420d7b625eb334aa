package testutil

import (
	"fmt"
	"sync"
)

// SequentialUUIDs yields run UUIDs of the form
// "00000000-0000-7000-8000-00000000000N" in order.
//
// This enables deterministic run rows and golden comparisons of run
// listings. Implements registry.UUIDGenerator.
type SequentialUUIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialUUIDs returns a generator whose first value ends in 1.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Generate returns the next UUID.
func (g *SequentialUUIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}
