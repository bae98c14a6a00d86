//go:build !txdownload_debug

package dbgassert

// Assert is a no-op outside of debug builds.
func Assert(cond bool, msg string) {}
