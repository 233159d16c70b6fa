package config

import (
	"github.com/spf13/viper"

	"github.com/mrz1836/paytoken/internal/constants"
)

// Default endpoint and link values.
const (
	DefaultServiceURL = "http://" + constants.DefaultServerAddr
	DefaultPayReqBase = "paytoken://request"
	DefaultTokenBase  = "paytoken://claim"
)

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Ledger: EndpointConfig{
			URL:     DefaultServiceURL,
			Timeout: constants.DefaultHTTPTimeout,
		},
		Authority: EndpointConfig{
			URL:     DefaultServiceURL,
			Timeout: constants.DefaultHTTPTimeout,
		},
		Storage: StorageConfig{
			Backend:       BackendFile,
			LockTimeout:   constants.DefaultLockTimeout,
			PassphraseEnv: constants.EnvPrefix + "_PASSPHRASE",
		},
		Claims: ClaimsConfig{
			SweepInterval:        constants.DefaultSweepInterval,
			ConnectivityInterval: constants.DefaultConnectivityInterval,
			SettleTimeout:        constants.DefaultSettleTimeout,
		},
		Server: ServerConfig{
			Addr:           constants.DefaultServerAddr,
			OpeningBalance: constants.DefaultOpeningBalance,
		},
		PayReq: PayReqConfig{
			BaseURL: DefaultPayReqBase,
		},
		Events: EventsConfig{
			Buffer: constants.DefaultEventBuffer,
		},
	}
}

// setDefaults configures all default values on the Viper instance.
// Every key is registered, even empty ones, so environment overrides apply.
// IMPORTANT: Keys must match the mapstructure tag names exactly.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("user.uid", "")
	v.SetDefault("user.name", "")

	v.SetDefault("ledger.url", d.Ledger.URL)
	v.SetDefault("ledger.timeout", d.Ledger.Timeout)
	v.SetDefault("authority.url", d.Authority.URL)
	v.SetDefault("authority.timeout", d.Authority.Timeout)

	v.SetDefault("trust.anchor", "")
	v.SetDefault("trust.anchor_file", "")

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.lock_timeout", d.Storage.LockTimeout)
	v.SetDefault("storage.passphrase_env", d.Storage.PassphraseEnv)

	v.SetDefault("claims.sweep_interval", d.Claims.SweepInterval)
	v.SetDefault("claims.connectivity_interval", d.Claims.ConnectivityInterval)
	v.SetDefault("claims.settle_timeout", d.Claims.SettleTimeout)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", "")
	v.SetDefault("server.key_dir", "")
	v.SetDefault("server.opening_balance", d.Server.OpeningBalance)

	v.SetDefault("payreq.base_url", d.PayReq.BaseURL)
	v.SetDefault("events.buffer", d.Events.Buffer)
}
