package config

import (
	"os"
	"path/filepath"

	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/errors"
)

// GlobalConfigDir returns ~/.paytoken.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.HomeDir), nil
}

// ProjectConfigDir returns the project configuration directory, relative to
// the working directory.
func ProjectConfigDir() string {
	return constants.HomeDir
}

// HomeDir returns the directory the config was loaded for.
func (c *Config) HomeDir() string {
	return c.home
}

// DataDir returns storage.dir, or the home directory when unset.
func (c *Config) DataDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return c.home
}

// AnchorFilePath returns trust.anchor_file or its default location.
func (c *Config) AnchorFilePath() string {
	if c.Trust.AnchorFile != "" {
		return c.Trust.AnchorFile
	}
	return filepath.Join(c.DataDir(), constants.AnchorFileName)
}

// LedgerDBPath returns server.db_path or its default location.
func (c *Config) LedgerDBPath() string {
	if c.Server.DBPath != "" {
		return c.Server.DBPath
	}
	return filepath.Join(c.DataDir(), constants.LedgerDBFileName)
}

// KeyDir returns server.key_dir or its default location.
func (c *Config) KeyDir() string {
	if c.Server.KeyDir != "" {
		return c.Server.KeyDir
	}
	return filepath.Join(c.DataDir(), constants.KeysDir)
}

// LogDir returns the directory for rotating log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.home, constants.LogsDir)
}

// Passphrase returns the key-sealing passphrase from the environment, if any.
func (c *Config) Passphrase() string {
	if c.Storage.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(c.Storage.PassphraseEnv)
}
