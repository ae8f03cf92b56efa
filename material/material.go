// Package material maps pairs of material ids to contact properties and the pair hooks that
// can veto or edit contacts.
package material

import (
	"sync"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/collide"
)

// Default is the material id every body starts with.
const Default = 0

// OverlapFunc runs when the broad phase first reports a pair. Returning false drops the pair
// for this step.
type OverlapFunc func(a, b *body.Body) bool

// ContactFunc runs after the narrow phase built a manifold. It may edit the points or return
// false to discard the contact for this step.
type ContactFunc func(a, b *body.Body, m *collide.Manifold) bool

type Pair struct {
	Restitution     float64
	StaticFriction  float64
	KineticFriction float64
	Collidable      bool
	OnOverlap       OverlapFunc
	OnContact       ContactFunc
}

func DefaultPair() Pair {
	return Pair{
		Restitution:     0.4,
		StaticFriction:  0.9,
		KineticFriction: 0.5,
		Collidable:      true,
	}
}

type key struct{ a, b int }

func pairKey(a, b int) key {
	if a > b {
		a, b = b, a
	}
	return key{a, b}
}

// Table is safe for concurrent lookups during a step. Mutations belong between steps.
type Table struct {
	mu       sync.RWMutex
	fallback Pair
	pairs    map[key]Pair
	names    []string
}

func NewTable() *Table {
	return &Table{
		fallback: DefaultPair(),
		pairs:    make(map[key]Pair),
		names:    []string{"default"},
	}
}

// Create registers a new material and returns its id.
func (t *Table) Create(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
	return len(t.names) - 1
}

func (t *Table) Name(id int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.names) {
		return ""
	}
	return t.names[id]
}

func (t *Table) Valid(id int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return id >= 0 && id < len(t.names)
}

// SetDefault sets the properties of every pair without an explicit entry.
func (t *Table) SetDefault(p Pair) {
	t.mu.Lock()
	t.fallback = p
	t.mu.Unlock()
}

func (t *Table) Set(a, b int, p Pair) {
	t.mu.Lock()
	t.pairs[pairKey(a, b)] = p
	t.mu.Unlock()
}

// Lookup is symmetric in its arguments.
func (t *Table) Lookup(a, b int) Pair {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.pairs[pairKey(a, b)]; ok {
		return p
	}
	return t.fallback
}
