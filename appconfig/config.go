package appconfig

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Log      LogConfig     `mapstructure:"log"`
	Storage  StorageConfig `mapstructure:"storage"`
	CardSets CardSetConfig `mapstructure:"cardsets"`
	Game     GameConfig    `mapstructure:"game"`
	Ngrok    NgrokConfig   `mapstructure:"ngrok"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	// PublicURL prefixes uploaded image URLs; defaults to http://host:port
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
	StaticDir string `mapstructure:"static_dir"`
	// MaxUploadMB bounds a multipart card set upload
	MaxUploadMB int `mapstructure:"max_upload_mb" validate:"gt=0"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// StorageConfig holds local directories. Empty sub-directories are derived
// from DataDir.
type StorageConfig struct {
	DataDir     string `mapstructure:"data_dir" validate:"required"`
	SessionsDir string `mapstructure:"sessions_dir"`
	BlobsDir    string `mapstructure:"blobs_dir"`
}

// CardSetConfig selects the card set document store
type CardSetConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=file redis postgres"`
	Dir         string `mapstructure:"dir"`
	RedisURL    string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

// GameConfig tunes gameplay and session housekeeping
type GameConfig struct {
	// ConcealDelay hides a mismatch automatically; zero leaves it to clients
	ConcealDelay    time.Duration `mapstructure:"conceal_delay" validate:"gte=0"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	SyncInterval    time.Duration `mapstructure:"sync_interval" validate:"gt=0"`
}

// NgrokConfig controls the optional public tunnel
type NgrokConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"auth_token"`
	Domain    string `mapstructure:"domain"`
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BaseURL is the externally visible root used in image URLs
func (c *Config) BaseURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimRight(c.Server.PublicURL, "/")
	}
	return "http://" + c.Addr()
}

// MaxUploadBytes converts MaxUploadMB
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) applyDerived() {
	if c.Storage.SessionsDir == "" {
		c.Storage.SessionsDir = filepath.Join(c.Storage.DataDir, "sessions")
	}
	if c.Storage.BlobsDir == "" {
		c.Storage.BlobsDir = filepath.Join(c.Storage.DataDir, "blobs")
	}
	if c.CardSets.Dir == "" {
		c.CardSets.Dir = filepath.Join(c.Storage.DataDir, "cardsets")
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.CardSets.Backend = strings.ToLower(c.CardSets.Backend)
}
