//go:build rdpmux_debug

package cos

// Assert panics with args if cond is false. Compiled in only under the
// rdpmux_debug build tag, matching how the teacher gates cmn/debug.Assert
// behind its own "debug" build tag so release builds pay nothing for it.
func Assert(cond bool, args ...any) {
	if !cond {
		panic(assertMsg(args))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
