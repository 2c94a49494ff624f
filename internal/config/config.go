// Package config loads and validates roster configuration from ROSTER_*
// environment variables and an optional YAML file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"roster/internal/blob"
	"roster/internal/core"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ROSTER"

// Config holds process configuration.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	// PostgresDSN is required when StorageDriver is postgres.
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	BlobDriver string `mapstructure:"BLOB_DRIVER"`
	BlobFSRoot string `mapstructure:"BLOB_FS_ROOT"`

	BlobS3Bucket          string `mapstructure:"BLOB_S3_BUCKET"`
	BlobS3Region          string `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint        string `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3AccessKeyID     string `mapstructure:"BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretAccessKey string `mapstructure:"BLOB_S3_SECRET_ACCESS_KEY"`
	BlobS3SessionToken    string `mapstructure:"BLOB_S3_SESSION_TOKEN"`
	BlobS3PathStyle       bool   `mapstructure:"BLOB_S3_PATH_STYLE"`

	// ImageMode is inline (data URLs in the record) or blob (object store).
	ImageMode     string `mapstructure:"IMAGE_MODE"`
	ImageMaxBytes int64  `mapstructure:"IMAGE_MAX_BYTES"`

	// SimulatedLatency delays every mutating operation; 0 disables it.
	SimulatedLatency time.Duration `mapstructure:"SIMULATED_LATENCY"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE_DRIVER", string(core.StorageSQLite))
	v.SetDefault("SQLITE_PATH", "roster.db")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("BLOB_DRIVER", string(blob.DriverFilesystem))
	v.SetDefault("BLOB_FS_ROOT", "blobdata")
	v.SetDefault("BLOB_S3_BUCKET", "")
	v.SetDefault("BLOB_S3_REGION", "us-east-1")
	v.SetDefault("BLOB_S3_ENDPOINT", "")
	v.SetDefault("BLOB_S3_ACCESS_KEY_ID", "")
	v.SetDefault("BLOB_S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("BLOB_S3_SESSION_TOKEN", "")
	v.SetDefault("BLOB_S3_PATH_STYLE", false)
	v.SetDefault("IMAGE_MODE", string(core.ImageModeInline))
	v.SetDefault("IMAGE_MAX_BYTES", core.DefaultMaxImageBytes)
	v.SetDefault("SIMULATED_LATENCY", core.DefaultLatency.String())
	v.SetDefault("LOG_LEVEL", "info")
}

// Load builds Config from defaults, the optional YAML file at path and the
// environment, in increasing precedence. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageMemory:
	case core.StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH must be set for the sqlite driver")
		}
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch core.ImageMode(c.ImageMode) {
	case core.ImageModeInline:
	case core.ImageModeBlob:
		switch blob.Driver(c.BlobDriver) {
		case blob.DriverFilesystem, blob.DriverMemory:
		case blob.DriverS3:
			if c.BlobS3Bucket == "" {
				return errors.New("config: BLOB_S3_BUCKET must be set for the s3 blob driver")
			}
		default:
			return fmt.Errorf("config: unknown BLOB_DRIVER %q", c.BlobDriver)
		}
	default:
		return fmt.Errorf("config: unknown IMAGE_MODE %q", c.ImageMode)
	}
	if c.ImageMaxBytes <= 0 {
		return errors.New("config: IMAGE_MAX_BYTES must be positive")
	}
	if c.SimulatedLatency < 0 {
		return errors.New("config: SIMULATED_LATENCY must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return nil
}

// Storage returns the durable storage settings.
func (c *Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.StorageDriver),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// Blob returns the blob store settings.
func (c *Config) Blob() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.BlobDriver),
		FSRoot: c.BlobFSRoot,
		S3: blob.S3Config{
			Region:          c.BlobS3Region,
			Bucket:          c.BlobS3Bucket,
			Endpoint:        c.BlobS3Endpoint,
			AccessKeyID:     c.BlobS3AccessKeyID,
			SecretAccessKey: c.BlobS3SecretAccessKey,
			SessionToken:    c.BlobS3SessionToken,
			PathStyle:       c.BlobS3PathStyle,
		},
	}
}

// Level returns the parsed log level, info when invalid.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
