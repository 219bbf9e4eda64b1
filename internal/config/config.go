package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
)

// DefaultPath is the config file looked up when -c is not given.
const DefaultPath = "nightlybuilder.yaml"

// envFiles are loaded (without overriding the process environment) before the
// config file is expanded, so DROID_* values may live in a .env file.
var envFiles = []string{".env", ".env.local"}

// Load reads the configuration from path. A missing file is only tolerated
// when optional is set, in which case pure defaults are returned.
func Load(path string, optional bool) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").
				Fatal().WithContext("path", path).Build()
		}
	case os.IsNotExist(err) && optional:
		slog.Debug("No config file, using defaults", "path", path)
	case os.IsNotExist(err):
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).Build()
	default:
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().WithContext("path", path).Build()
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load env file", "path", f, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", f)
	}
}
