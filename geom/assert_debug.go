//go:build physdebug

package geom

import "fmt"

// Debug reports whether contract assertions are compiled in.
const Debug = true

// Assert panics when cond is false. Release builds compile it to nothing.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("physics contract violated: "+format, args...))
	}
}
