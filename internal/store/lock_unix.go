//go:build unix

package store

import "golang.org/x/sys/unix"

// lockExclusive takes a non-blocking exclusive flock on fd.
func lockExclusive(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB) //nolint:gosec // fd fits in int
}

func unlockFile(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN) //nolint:gosec // fd fits in int
}
