//go:build !(linux || darwin || freebsd || openbsd)

package secmem

// mlock/munlock are no-ops on platforms without an mlock syscall; zeroing on
// Release still applies, it is only the page-lock that is unavailable.
func mlock(b []byte) error   { return nil }
func munlock(b []byte) error { return nil }
