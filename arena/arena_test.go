package arena

import "testing"

func TestInsertGetRemove(t *testing.T) {
	a := New[string](4)
	h1 := a.Insert("a")
	h2 := a.Insert("b")
	if h1.IsNil() || h2.IsNil() {
		t.Fatal("Insert returned nil handle")
	}
	if v, ok := a.Get(h2); !ok || v != "b" {
		t.Errorf("Get(h2) = %q, %v", v, ok)
	}
	if _, ok := a.Remove(h1); !ok {
		t.Fatal("Remove(h1) failed")
	}
	if a.Valid(h1) {
		t.Error("removed handle still valid")
	}
	h3 := a.Insert("c")
	if h3.Index != h1.Index {
		t.Errorf("slot not reused: %v vs %v", h3, h1)
	}
	if h3.Gen == h1.Gen {
		t.Error("reused slot kept the old generation")
	}
	if _, ok := a.Get(h1); ok {
		t.Error("stale handle reached the new value")
	}
	if a.Len() != 2 {
		t.Errorf("Len = %d, want 2", a.Len())
	}
}

func TestEachSkipsFreeSlots(t *testing.T) {
	a := New[int](0)
	hs := []Handle{a.Insert(1), a.Insert(2), a.Insert(3)}
	a.Remove(hs[1])
	sum := 0
	a.Each(func(_ Handle, v int) bool {
		sum += v
		return true
	})
	if sum != 4 {
		t.Errorf("sum = %d, want 4", sum)
	}
}
