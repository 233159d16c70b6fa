package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// FileStore implements Store with JSON files under a base directory.
//
// Layout:
//
//	<base>/users/<base64url(uid)>/identity.json
//	<base>/users/<base64url(uid)>/claims.json
//	<base>/users/<base64url(uid)>/balance.json
//
// Every file has a sidecar .lock file; readers and writers hold it for the
// whole operation and writes go through temp file + rename.
type FileStore struct {
	basePath    string
	lockTimeout time.Duration
	clock       clock.Clock
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLockTimeout sets a custom lock timeout.
func WithLockTimeout(timeout time.Duration) FileStoreOption {
	return func(fs *FileStore) {
		fs.lockTimeout = timeout
	}
}

// WithClock sets the clock used for record timestamps.
func WithClock(c clock.Clock) FileStoreOption {
	return func(fs *FileStore) {
		fs.clock = c
	}
}

// NewFileStore creates a FileStore rooted at basePath.
func NewFileStore(basePath string, opts ...FileStoreOption) *FileStore {
	fs := &FileStore{
		basePath:    basePath,
		lockTimeout: constants.DefaultLockTimeout,
		clock:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// GetKey returns the key record for uid.
func (fs *FileStore) GetKey(ctx context.Context, uid string) (*domain.KeyRecord, error) {
	var rec domain.KeyRecord
	found, err := readJSON(ctx, fs.path(uid, constants.IdentityFileName), fs.lockTimeout, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", payerrors.ErrKeyNotFound, uid)
	}
	return &rec, nil
}

// PutKey writes rec, replacing any existing record for the same uid.
func (fs *FileStore) PutKey(ctx context.Context, rec *domain.KeyRecord) error {
	if rec == nil || rec.UID == "" {
		return fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	return updateJSON(ctx, fs.path(rec.UID, constants.IdentityFileName), fs.lockTimeout,
		func(current *domain.KeyRecord, _ bool) error {
			*current = *rec
			return nil
		})
}

// ListClaims returns the claim queue for uid.
func (fs *FileStore) ListClaims(ctx context.Context, uid string) ([]domain.PendingClaim, error) {
	var claims []domain.PendingClaim
	if _, err := readJSON(ctx, fs.path(uid, constants.ClaimsFileName), fs.lockTimeout, &claims); err != nil {
		return nil, err
	}
	return cloneClaims(claims), nil
}

// UpdateClaims atomically rewrites the claim queue for uid.
func (fs *FileStore) UpdateClaims(ctx context.Context, uid string, modifier func([]domain.PendingClaim) ([]domain.PendingClaim, error)) error {
	return updateJSON(ctx, fs.path(uid, constants.ClaimsFileName), fs.lockTimeout,
		func(current *[]domain.PendingClaim, _ bool) error {
			next, err := modifier(cloneClaims(*current))
			if err != nil {
				return err
			}
			*current = next
			return nil
		})
}

// GetBalance returns the balance record for uid.
func (fs *FileStore) GetBalance(ctx context.Context, uid string) (*domain.BalanceRecord, error) {
	rec := domain.BalanceRecord{UID: uid}
	if _, err := readJSON(ctx, fs.path(uid, constants.BalanceFileName), fs.lockTimeout, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateBalance atomically rewrites the balance record for uid.
func (fs *FileStore) UpdateBalance(ctx context.Context, uid string, modifier func(*domain.BalanceRecord) error) error {
	return updateJSON(ctx, fs.path(uid, constants.BalanceFileName), fs.lockTimeout,
		func(current *domain.BalanceRecord, _ bool) error {
			current.UID = uid
			if err := modifier(current); err != nil {
				return err
			}
			current.UpdatedAtMs = clock.Millis(fs.clock)
			return nil
		})
}

// UserDir returns the directory holding uid's files.
func (fs *FileStore) UserDir(uid string) string {
	return filepath.Join(fs.basePath, constants.UsersDir, base64.RawURLEncoding.EncodeToString([]byte(uid)))
}

func (fs *FileStore) path(uid, name string) string {
	return filepath.Join(fs.UserDir(uid), name)
}

// readJSON decodes path into v under its lock. found is false when the file
// does not exist, in which case v is left untouched.
func readJSON(ctx context.Context, path string, timeout time.Duration, v any) (bool, error) {
	if _, err := os.Stat(filepath.Dir(path)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	lock := newFileLock(path + ".lock")
	if err := lock.acquire(ctx, timeout); err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = lock.release() }()

	data, err := os.ReadFile(path) //nolint:gosec // path built from the store base dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// updateJSON performs lock, read, modify, write on path. The modifier sees
// the zero value and exists=false when the file is missing.
func updateJSON[T any](ctx context.Context, path string, timeout time.Duration, modifier func(current *T, exists bool) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	lock := newFileLock(path + ".lock")
	if err := lock.acquire(ctx, timeout); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = lock.release() }()

	var current T
	exists := true
	data, err := os.ReadFile(path) //nolint:gosec // path built from the store base dir
	switch {
	case errors.Is(err, os.ErrNotExist):
		exists = false
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	default:
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
		}
	}

	if err := modifier(&current, exists); err != nil {
		return err
	}

	out, err := json.MarshalIndent(&current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return atomicWrite(path, out)
}

// atomicWrite writes data to a file atomically using temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
