package material

import "testing"

func TestLookupIsSymmetric(t *testing.T) {
	tbl := NewTable()
	ice := tbl.Create("ice")
	wood := tbl.Create("wood")
	p := DefaultPair()
	p.KineticFriction = 0.05
	tbl.Set(wood, ice, p)
	if got := tbl.Lookup(ice, wood).KineticFriction; got != 0.05 {
		t.Errorf("Lookup(ice, wood) friction = %v", got)
	}
	if got := tbl.Lookup(Default, ice); got.KineticFriction != DefaultPair().KineticFriction {
		t.Errorf("unset pair did not fall back to the default: %+v", got)
	}
	if tbl.Name(ice) != "ice" || tbl.Valid(42) {
		t.Error("material registry is inconsistent")
	}
}
