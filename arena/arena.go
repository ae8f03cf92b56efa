// Package arena stores values in a slice addressed by generation-checked handles, so a handle to
// a destroyed slot can never reach the value that later reuses the slot.
package arena

import "fmt"

type Handle struct {
	Index uint32
	Gen   uint32
}

// Nil is never returned by Insert.
var Nil = Handle{}

func (h Handle) IsNil() bool { return h.Gen == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.Index, h.Gen)
}

// Less orders handles by slot index, then generation.
func (h Handle) Less(o Handle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}
	return h.Gen < o.Gen
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]slot[T], 0, capacity)}
}

func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	s.live = true
	a.count++
	return Handle{Index: idx, Gen: s.gen}
}

func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.live || s.gen != h.Gen {
		return zero, false
	}
	return s.value, true
}

func (a *Arena[T]) Valid(h Handle) bool {
	_, ok := a.Get(h)
	return ok
}

// Remove frees the slot and returns the stored value.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	v, ok := a.Get(h)
	if !ok {
		return v, false
	}
	var zero T
	s := &a.slots[h.Index]
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index)
	a.count--
	return v, true
}

func (a *Arena[T]) Len() int { return a.count }

// Cap returns the number of slots ever allocated, live or free.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// At returns the live value at slot index i.
func (a *Arena[T]) At(i int) (T, Handle, bool) {
	var zero T
	if i < 0 || i >= len(a.slots) || !a.slots[i].live {
		return zero, Handle{}, false
	}
	s := &a.slots[i]
	return s.value, Handle{Index: uint32(i), Gen: s.gen}, true
}

// Each visits live values in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(Handle{Index: uint32(i), Gen: s.gen}, s.value) {
			return
		}
	}
}
