package store

import (
	"context"
	"fmt"
	"os"
	"time"

	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

const lockRetryInterval = 50 * time.Millisecond

// fileLock is an exclusive advisory lock held on a sidecar .lock file.
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

// acquire retries the non-blocking lock until it succeeds, the timeout
// elapses or ctx is canceled.
func (fl *fileLock) acquire(ctx context.Context, timeout time.Duration) error {
	var err error
	fl.file, err = os.OpenFile(fl.path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // path built from the store base dir
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			_ = fl.file.Close()
			return ctx.Err()
		default:
		}

		if err = lockExclusive(fl.file.Fd()); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			_ = fl.file.Close()
			return fmt.Errorf("%w after %v", payerrors.ErrLockTimedOut, timeout)
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = fl.file.Close()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (fl *fileLock) release() error {
	if fl.file == nil {
		return nil
	}
	_ = unlockFile(fl.file.Fd())
	return fl.file.Close()
}
