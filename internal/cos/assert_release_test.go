//go:build !rdpmux_debug

package cos

import "testing"

// Assert/AssertNoErr compile out to no-ops outside the rdpmux_debug
// build tag; assert_debug_test.go covers the panicking half.
func TestAssertHelpersAreNoopsInReleaseBuilds(t *testing.T) {
	Assert(false, "should not panic without the rdpmux_debug build tag")
	AssertNoErr(errInjected)
}
