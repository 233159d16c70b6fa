package config

import (
	"net/url"
	"time"

	"github.com/mrz1836/paytoken/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - storage.backend must be file, redis or memory; redis needs storage.redis_url
//   - ledger.url and authority.url must be absolute http(s) URLs
//   - timeouts must be positive
//   - claims.sweep_interval and claims.connectivity_interval must be at least one second
//   - server.opening_balance must not be negative
//   - events.buffer must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(errors.ErrConfigInvalid, "config is nil")
	}

	switch cfg.Storage.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if cfg.Storage.RedisURL == "" {
			return errors.Wrap(errors.ErrConfigInvalid, "storage.redis_url is required for the redis backend")
		}
	default:
		return errors.Wrapf(errors.ErrConfigInvalid,
			"storage.backend must be one of file, redis, memory, got %q", cfg.Storage.Backend)
	}

	if err := validateEndpoint("ledger", cfg.Ledger); err != nil {
		return err
	}
	if err := validateEndpoint("authority", cfg.Authority); err != nil {
		return err
	}

	if err := positive("storage.lock_timeout", cfg.Storage.LockTimeout); err != nil {
		return err
	}
	if err := positive("claims.settle_timeout", cfg.Claims.SettleTimeout); err != nil {
		return err
	}
	if cfg.Claims.SweepInterval < time.Second {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"claims.sweep_interval must be at least 1s, got %s", cfg.Claims.SweepInterval)
	}
	if cfg.Claims.ConnectivityInterval < time.Second {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"claims.connectivity_interval must be at least 1s, got %s", cfg.Claims.ConnectivityInterval)
	}

	if cfg.Server.OpeningBalance < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"server.opening_balance must not be negative, got %d", cfg.Server.OpeningBalance)
	}
	if cfg.Events.Buffer <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "events.buffer must be positive, got %d", cfg.Events.Buffer)
	}
	return nil
}

func validateEndpoint(name string, e EndpointConfig) error {
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(errors.ErrConfigInvalid, "%s.url must be an http(s) URL, got %q", name, e.URL)
	}
	return positive(name+".timeout", e.Timeout)
}

func positive(key string, d time.Duration) error {
	if d <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "%s must be positive, got %s", key, d)
	}
	return nil
}
