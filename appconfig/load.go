package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEMORYMATCH_SERVER_PORT
const EnvPrefix = "MEMORYMATCH"

var defaults = map[string]any{
	"server.host":           "localhost",
	"server.port":           8080,
	"server.public_url":     "",
	"server.static_dir":     "static",
	"server.max_upload_mb":  32,
	"log.level":             "info",
	"log.format":            "text",
	"storage.data_dir":      "data",
	"storage.sessions_dir":  "",
	"storage.blobs_dir":     "",
	"cardsets.backend":      "file",
	"cardsets.dir":          "",
	"cardsets.redis_url":    "",
	"cardsets.database_url": "",
	"game.conceal_delay":    "1s",
	"game.session_ttl":      "24h",
	"game.cleanup_interval": "1h",
	"game.sync_interval":    "5s",
	"ngrok.enabled":         false,
	"ngrok.auth_token":      "",
	"ngrok.domain":          "",
}

// Conventional unprefixed names accepted after the prefixed ones
var extraEnv = map[string][]string{
	"ngrok.enabled":         {"NGROK_ENABLED"},
	"ngrok.auth_token":      {"NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"},
	"ngrok.domain":          {"NGROK_DOMAIN"},
	"cardsets.redis_url":    {"REDIS_URL"},
	"cardsets.database_url": {"DATABASE_URL"},
}

// LoadDotEnv loads .env style files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing precedence. An empty path looks for
// memorymatch.{yaml,json,toml} in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("memorymatch")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range extraEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding environment for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills derived values and checks the result. Call it again after
// overriding fields from command-line flags.
func (c *Config) Validate() error {
	c.applyDerived()
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
