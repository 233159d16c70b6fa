// Package config provides configuration management for paytoken with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (bound with WithFlags)
//  2. Environment variables (PAYTOKEN_* prefix, including values from .env)
//  3. Project config (.paytoken/config.yaml)
//  4. Global config (~/.paytoken/config.yaml)
//  5. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the root configuration structure for paytoken.
type Config struct {
	// User is the local member this device acts for.
	User UserConfig `yaml:"user" mapstructure:"user"`

	// Ledger locates the ledger service.
	Ledger EndpointConfig `yaml:"ledger" mapstructure:"ledger"`

	// Authority locates the Trust Authority.
	Authority EndpointConfig `yaml:"authority" mapstructure:"authority"`

	// Trust holds the trust-anchor public key used for offline verification.
	Trust TrustConfig `yaml:"trust" mapstructure:"trust"`

	// Storage selects where keys, claims and balances are kept.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Claims controls queued-claim reconciliation.
	Claims ClaimsConfig `yaml:"claims" mapstructure:"claims"`

	// Server configures the reference server started by 'paytoken serve'.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// PayReq configures payment-request links.
	PayReq PayReqConfig `yaml:"payreq" mapstructure:"payreq"`

	// Events configures the in-process event bus.
	Events EventsConfig `yaml:"events" mapstructure:"events"`

	home string
}

// UserConfig identifies the local member.
type UserConfig struct {
	UID  string `yaml:"uid" mapstructure:"uid"`
	Name string `yaml:"name" mapstructure:"name"`
}

// EndpointConfig locates a remote HTTP service.
type EndpointConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TrustConfig holds the trust anchor. Anchor (hex) wins over AnchorFile.
type TrustConfig struct {
	Anchor string `yaml:"anchor" mapstructure:"anchor"`

	// AnchorFile defaults to <data dir>/anchor.pub.
	AnchorFile string `yaml:"anchor_file" mapstructure:"anchor_file"`
}

// StorageConfig selects the local store.
type StorageConfig struct {
	// Backend is one of file, redis or memory.
	// Default: "file"
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Dir is the data directory. Empty means ~/.paytoken.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RedisURL is required for the redis backend.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`

	// LockTimeout bounds file lock acquisition.
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`

	// PassphraseEnv names the environment variable holding the key-sealing
	// passphrase. Keys are sealed only when that variable is set.
	PassphraseEnv string `yaml:"passphrase_env" mapstructure:"passphrase_env"`
}

// ClaimsConfig controls reconciliation.
type ClaimsConfig struct {
	SweepInterval        time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	ConnectivityInterval time.Duration `yaml:"connectivity_interval" mapstructure:"connectivity_interval"`
	SettleTimeout        time.Duration `yaml:"settle_timeout" mapstructure:"settle_timeout"`
}

// ServerConfig configures the reference server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`

	// DBPath defaults to <data dir>/ledger.db.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// KeyDir defaults to <data dir>/keys.
	KeyDir string `yaml:"key_dir" mapstructure:"key_dir"`

	OpeningBalance int64 `yaml:"opening_balance" mapstructure:"opening_balance"`
}

// PayReqConfig configures payment-request links.
type PayReqConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	Buffer int `yaml:"buffer" mapstructure:"buffer"`
}
