package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// defaultRedisPrefix namespaces every key written by RedisStore.
const defaultRedisPrefix = "paytoken"

// maxTxRetries bounds optimistic retries when a watched key changes mid-update.
const maxTxRetries = 16

// RedisStore implements Store on Redis. Each record is one JSON string key;
// updates run as WATCH/MULTI transactions and retry on conflict.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) RedisOption {
	return func(rs *RedisStore) {
		rs.prefix = prefix
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	rs := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// DialRedis parses a redis:// URL, connects and pings.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close closes the underlying client.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// GetKey returns the key record for uid.
func (rs *RedisStore) GetKey(ctx context.Context, uid string) (*domain.KeyRecord, error) {
	var rec domain.KeyRecord
	found, err := rs.get(ctx, rs.key(uid, "identity"), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", payerrors.ErrKeyNotFound, uid)
	}
	return &rec, nil
}

// PutKey writes rec.
func (rs *RedisStore) PutKey(ctx context.Context, rec *domain.KeyRecord) error {
	if rec == nil || rec.UID == "" {
		return fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode key record: %w", err)
	}
	if err := rs.client.Set(ctx, rs.key(rec.UID, "identity"), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// ListClaims returns the claim queue for uid.
func (rs *RedisStore) ListClaims(ctx context.Context, uid string) ([]domain.PendingClaim, error) {
	var claims []domain.PendingClaim
	if _, err := rs.get(ctx, rs.key(uid, "claims"), &claims); err != nil {
		return nil, err
	}
	return cloneClaims(claims), nil
}

// UpdateClaims atomically rewrites the claim queue for uid.
func (rs *RedisStore) UpdateClaims(ctx context.Context, uid string, modifier func([]domain.PendingClaim) ([]domain.PendingClaim, error)) error {
	return redisUpdate(ctx, rs.client, rs.key(uid, "claims"), func(current *[]domain.PendingClaim) error {
		next, err := modifier(cloneClaims(*current))
		if err != nil {
			return err
		}
		*current = next
		return nil
	})
}

// GetBalance returns the balance record for uid.
func (rs *RedisStore) GetBalance(ctx context.Context, uid string) (*domain.BalanceRecord, error) {
	rec := domain.BalanceRecord{UID: uid}
	if _, err := rs.get(ctx, rs.key(uid, "balance"), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateBalance atomically rewrites the balance record for uid.
func (rs *RedisStore) UpdateBalance(ctx context.Context, uid string, modifier func(*domain.BalanceRecord) error) error {
	return redisUpdate(ctx, rs.client, rs.key(uid, "balance"), func(current *domain.BalanceRecord) error {
		current.UID = uid
		if err := modifier(current); err != nil {
			return err
		}
		current.UpdatedAtMs = clock.Millis(rs.clock)
		return nil
	})
}

func (rs *RedisStore) key(uid, kind string) string {
	return rs.prefix + ":" + base64.RawURLEncoding.EncodeToString([]byte(uid)) + ":" + kind
}

func (rs *RedisStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := rs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get error: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// redisUpdate runs a WATCHed read-modify-write on key. A concurrent writer
// aborts the EXEC and the whole function is retried.
func redisUpdate[T any](ctx context.Context, client redis.UniversalClient, key string, modifier func(*T) error) error {
	txf := func(tx *redis.Tx) error {
		var current T
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get error: %w", err)
		default:
			if err := json.Unmarshal(data, &current); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}

		if err := modifier(&current); err != nil {
			return err
		}

		out, err := json.Marshal(&current)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s kept changing", payerrors.ErrLockTimedOut, key)
}

var _ Store = (*RedisStore)(nil)
