//go:build !rdpmux_debug

package cos

func Assert(cond bool, args ...any) {}

func AssertNoErr(err error) {}
