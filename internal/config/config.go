package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage and session backend selectors.
const (
	StorageMinio = "minio"
	StorageLocal = "local"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"
	SessionsSQLite = "sqlite"
)

// Config is the environment-driven configuration for the gateway process.
type Config struct {
	ListenAddr    string `mapstructure:"LISTEN_ADDR"`
	MaxChunkBytes int64  `mapstructure:"MAX_CHUNK_BYTES"`

	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	DataDir        string `mapstructure:"DATA_DIR"`

	// --- S3 ---
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`
	S3PathStyle bool   `mapstructure:"S3_PATH_STYLE"`

	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	SessionDBPath  string `mapstructure:"SESSION_DB_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	EventChannel string `mapstructure:"EVENT_CHANNEL"`
}

// LoadFromEnv reads configuration from the environment, loading .env first
// when one is present for local development.
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.New("failed to load .env")
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	keys := []string{
		"LISTEN_ADDR", "MAX_CHUNK_BYTES",
		"TOKEN_SECRET", "TOKEN_ISSUER",
		"STORAGE_BACKEND", "DATA_DIR",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"S3_USE_SSL", "S3_PATH_STYLE",
		"SESSION_BACKEND", "SESSION_DB_PATH",
		"REDIS_ADDR", "REDIS_DB", "REDIS_PASSWORD",
		"EVENT_CHANNEL",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("MAX_CHUNK_BYTES", 5*1024*1024)
	v.SetDefault("TOKEN_ISSUER", "valetgate")
	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("SESSION_BACKEND", SessionsMemory)
	v.SetDefault("SESSION_DB_PATH", "./data/sessions.db")
	v.SetDefault("EVENT_CHANNEL", "valetgate.files")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET must be set")
	}
	if c.MaxChunkBytes < 1 {
		return fmt.Errorf("MAX_CHUNK_BYTES must be positive, got %d", c.MaxChunkBytes)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageMinio:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return errors.New("S3_ENDPOINT and S3_BUCKET must be set for the minio backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.SessionBackend {
	case SessionsMemory, SessionsSQLite:
	case SessionsRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR must be set for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	return nil
}
