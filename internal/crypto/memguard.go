//go:build linux || darwin

package crypto

import "golang.org/x/sys/unix"

// LockMemory pins key material so it is never written to swap. Best effort:
// callers ignore failure on systems with a low RLIMIT_MEMLOCK.
func LockMemory(b []byte) error   { return unix.Mlock(b) }
func UnlockMemory(b []byte) error { return unix.Munlock(b) }
