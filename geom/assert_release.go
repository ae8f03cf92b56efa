//go:build !physdebug

package geom

const Debug = false

func Assert(cond bool, format string, args ...any) {}
