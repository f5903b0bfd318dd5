package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// TRENDLOOP_STORAGE_POSTGRES_DSN overrides storage.postgres_dsn.
const EnvPrefix = "TRENDLOOP"

// Load reads a YAML config file on top of Default, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	bindEnv(v)

	cfg := Default()
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv registers the keys that are commonly supplied through the
// environment only, so AutomaticEnv picks them up without a file entry.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"app.env",
		"app.log_level",
		"app.log_format",
		"app.metrics_addr",
		"storage.backend",
		"storage.postgres_dsn",
		"storage.clickhouse_dsn",
		"storage.redis_addr",
		"storage.redis_password",
		"storage.redis_db",
		"tick.feed_path",
	} {
		_ = v.BindEnv(key)
	}
}
