package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/errors"
)

// ConfigFileName is the config file name in both the global and project directories.
const ConfigFileName = "config.yaml"

type loadOptions struct {
	homeDir    string
	projectDir string
	envFile    string
	flags      *pflag.FlagSet
	bindings   map[string]string
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithHomeDir replaces ~/.paytoken as the global config and default data directory.
func WithHomeDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.homeDir = dir
	}
}

// WithProjectDir replaces ./.paytoken as the project config directory.
func WithProjectDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.projectDir = dir
	}
}

// WithEnvFile replaces ./.env as the dotenv file. An empty path disables it.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithFlags binds flags to config keys. bindings maps a config key such as
// "ledger.url" to a flag name. Only flags the user actually set take effect.
func WithFlags(fs *pflag.FlagSet, bindings map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.flags = fs
		o.bindings = bindings
	}
}

// newViperInstance creates a new Viper instance with the PAYTOKEN_ environment
// prefix, key replacer and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from all available sources with proper precedence.
// Missing config files are not an error.
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		projectDir: ProjectConfigDir(),
		envFile:    ".env",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.homeDir == "" {
		dir, err := GlobalConfigDir()
		if err != nil {
			return nil, err
		}
		o.homeDir = dir
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read env file %s", o.envFile)
		}
	}

	v := newViperInstance()
	if err := readConfig(v, filepath.Join(o.homeDir, ConfigFileName), false); err != nil {
		return nil, errors.Wrap(err, "failed to read global config file")
	}
	if err := readConfig(v, filepath.Join(o.projectDir, ConfigFileName), true); err != nil {
		return nil, errors.Wrap(err, "failed to read project config file")
	}
	if err := bindFlags(v, o.flags, o.bindings); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}
	cfg.home = o.homeDir

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("storage.backend", cfg.Storage.Backend).
		Str("ledger.url", cfg.Ledger.URL).
		Dur("claims.sweep_interval", cfg.Claims.SweepInterval).
		Msg("configuration loaded")

	return cfg, nil
}

// readConfig reads path into v, merging over what is already loaded when
// merge is set. A missing file is skipped.
func readConfig(v *viper.Viper, path string, merge bool) error {
	if !fileExists(path) {
		return nil
	}
	v.SetConfigFile(path)

	var err error
	if merge {
		err = v.MergeInConfig()
	} else {
		err = v.ReadInConfig()
	}
	if err != nil && !isConfigNotFoundError(err) {
		return err
	}
	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	if fs == nil {
		return nil
	}
	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// viperDecoderOption configures mapstructure to decode durations and
// comma-separated lists from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
