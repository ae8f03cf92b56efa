package body

type Flags uint8

const (
	Sleeping Flags = 1 << iota
	Equilibrium
	Frozen
	AutoSleep
	Continuous
)

func (f Flags) Has(mask Flags) bool { return f&mask != 0 }

func (f Flags) String() string {
	names := [...]string{"sleeping", "equilibrium", "frozen", "autosleep", "continuous"}
	s := ""
	for i, n := range names {
		if f&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n
	}
	if s == "" {
		return "none"
	}
	return s
}
