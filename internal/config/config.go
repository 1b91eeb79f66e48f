// Package config loads SalesPulse settings from a YAML file and the
// environment on top of the tier presets.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g.
// SALESPULSE_REPOSITORY_DRIVER=postgres or SALESPULSE_SERVER_PORT=8080.
const EnvPrefix = "SALESPULSE"

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "salespulse.yaml"

// Load builds the configuration. Precedence, lowest first: the tier preset,
// the YAML file, SALESPULSE_* environment variables. An explicit path must
// exist; the default file is optional.
func Load(path string) (*domain.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			v.SetConfigFile(DefaultFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", DefaultFile, err)
			}
		}
	}

	preset := domain.DefaultConfig()
	if domain.Tier(strings.ToLower(v.GetString("tier"))) == domain.TierPro {
		preset = domain.ProConfig()
	}
	// AutomaticEnv only consults keys viper knows about, so every field of
	// the preset is registered as a default.
	setDefaults(v, "", reflect.ValueOf(preset).Elem())

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Tier = domain.Tier(strings.ToLower(string(cfg.Tier)))

	if v.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config file loaded", "path", used)
	}
	return cfg, nil
}

// setDefaults registers every leaf of val under its mapstructure key path.
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
