package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends for the tournament document.
const (
	BackendR2       = "r2"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecretKey string        `env:"JWT_SECRET_KEY"`
	StaffKeyHash string        `env:"STAFF_KEY_HASH"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DocumentKey       string `env:"DOCUMENT_KEY" envDefault:"tournament_data.json"`
	UsersKey          string `env:"USERS_KEY" envDefault:"users.json"`
	PersistMaxRetries int    `env:"PERSIST_MAX_RETRIES" envDefault:"3"`

	DatabaseURL string `env:"DATABASE_URL"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION"`

	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/badger"`

	AutoWarnAfter time.Duration `env:"AUTO_WARN_AFTER" envDefault:"23h"`
	AutoLockAfter time.Duration `env:"AUTO_LOCK_AFTER" envDefault:"24h"`

	SchedulerRetryBackoff    time.Duration `env:"SCHEDULER_RETRY_BACKOFF" envDefault:"1s"`
	SchedulerMaxRetryBackoff time.Duration `env:"SCHEDULER_MAX_RETRY_BACKOFF" envDefault:"1m"`

	AnnounceChannelID  string   `env:"ANNOUNCE_CHANNEL_ID" envDefault:"popularity-cup"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Отсутствие .env не ошибка.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY environment variable is not set"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if strings.TrimSpace(c.DocumentKey) == "" {
		errs = append(errs, errors.New("DOCUMENT_KEY must not be empty"))
	}
	if strings.TrimSpace(c.UsersKey) == "" || c.UsersKey == c.DocumentKey {
		errs = append(errs, errors.New("USERS_KEY must be set and differ from DOCUMENT_KEY"))
	}
	if c.PersistMaxRetries < 0 {
		errs = append(errs, errors.New("PERSIST_MAX_RETRIES must not be negative"))
	}
	if c.AutoWarnAfter <= 0 || c.AutoLockAfter <= 0 {
		errs = append(errs, errors.New("AUTO_WARN_AFTER and AUTO_LOCK_AFTER must be positive"))
	} else if c.AutoWarnAfter >= c.AutoLockAfter {
		errs = append(errs, fmt.Errorf("AUTO_WARN_AFTER (%s) must be shorter than AUTO_LOCK_AFTER (%s)", c.AutoWarnAfter, c.AutoLockAfter))
	}
	if c.SchedulerRetryBackoff <= 0 || c.SchedulerMaxRetryBackoff < c.SchedulerRetryBackoff {
		errs = append(errs, errors.New("SCHEDULER_RETRY_BACKOFF must be positive and not above SCHEDULER_MAX_RETRY_BACKOFF"))
	}
	if strings.TrimSpace(c.AnnounceChannelID) == "" {
		errs = append(errs, errors.New("ANNOUNCE_CHANNEL_ID must not be empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.StorageBackend {
	case BackendR2:
		if c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("r2 backend requires R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME"))
		}
		if c.R2AccountID == "" && c.S3Endpoint == "" {
			errs = append(errs, errors.New("r2 backend requires R2_ACCOUNT_ID or S3_ENDPOINT"))
		}
	case BackendS3:
		if c.S3Endpoint == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("s3 backend requires S3_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres backend requires DATABASE_URL"))
		}
	case BackendBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("badger backend requires BADGER_PATH"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	return errors.Join(errs...)
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}
