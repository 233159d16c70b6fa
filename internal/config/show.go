package config

import (
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/paytoken/internal/errors"
)

// YAML renders the effective configuration. Passwords embedded in the Redis
// URL are masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if u, err := url.Parse(out.Storage.RedisURL); err == nil && out.Storage.RedisURL != "" {
		out.Storage.RedisURL = u.Redacted()
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render config")
	}
	return data, nil
}
