// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Marvel    MarvelConfig    `mapstructure:"marvel"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig controls access to the relational store.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// MarvelConfig holds credentials and paging knobs for the Marvel catalog API.
type MarvelConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PublicKey      string `mapstructure:"public_key"`
	PrivateKey     string `mapstructure:"private_key"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// QualityConfig governs the load guardrail.
type QualityConfig struct {
	// MinRatio is the minimum actual/expected coverage before a batch load
	// is aborted. Zero disables the guardrail.
	MinRatio float64 `mapstructure:"min_ratio"`
}

// ArchiveConfig selects where raw source payloads and cover images land.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"` // gcs, local, memory, noop
	Bucket   string `mapstructure:"bucket"`
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
}

// PublisherConfig configures run-completion event publishing.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"` // pubsub, memory, noop
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_seconds", 1800)
	v.SetDefault("marvel.base_url", "https://gateway.marvel.com/v1/public")
	v.SetDefault("marvel.page_size", 50)
	v.SetDefault("marvel.timeout_seconds", 30)
	v.SetDefault("marvel.max_retries", 5)
	v.SetDefault("quality.min_ratio", 0.8)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Marvel.PageSize <= 0 {
		return fmt.Errorf("marvel.page_size must be > 0")
	}
	if c.Marvel.TimeoutSeconds <= 0 {
		return fmt.Errorf("marvel.timeout_seconds must be > 0")
	}
	if c.Quality.MinRatio < 0 || c.Quality.MinRatio > 1 {
		return fmt.Errorf("quality.min_ratio must be within [0, 1]")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Archive.Provider {
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
		}
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set when archive.provider is local")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set when publisher.provider is pubsub")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	return nil
}

// SourceTimeout converts the configured request timeout into a duration.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Marvel.TimeoutSeconds) * time.Second
}

// ConnLifetime converts the configured pool lifetime into a duration.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.Database.MaxConnLifetime) * time.Second
}
