package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/lockdown/internal/host"
)

const (
	configFileName = "lockdown"
	configFileType = "yaml"
	envPrefix      = "LOCKDOWN"

	cfgKeyDebug = "capabilities.debug"
	cfgKeyRTI   = "capabilities.runtime_type_information"
	cfgKeyDB    = "db"
)

// Config is the resolved configuration of a CLI run.
//
// Precedence, highest first: flags, LOCKDOWN_* environment variables
// (LOCKDOWN_DB, LOCKDOWN_CAPABILITIES_DEBUG, ...), the config file, the
// defaults.
type Config struct {
	Capabilities host.Capabilities `mapstructure:"capabilities"`

	// DB is the verdict store path. Empty disables recording.
	DB string `mapstructure:"db"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{Capabilities: host.Default()}
}

// loadConfig resolves the configuration. With an explicit path the file
// must exist; otherwise lockdown.yaml is looked up in the working
// directory and may be missing.
func loadConfig(path string, v *viper.Viper) (Config, error) {
	defaults := DefaultConfig()
	v.SetDefault(cfgKeyDebug, defaults.Capabilities.Debug)
	v.SetDefault(cfgKeyRTI, defaults.Capabilities.RuntimeTypeInformation)
	v.SetDefault(cfgKeyDB, defaults.DB)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
