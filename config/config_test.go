package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "tournament_data.json", cfg.DocumentKey)
	assert.Equal(t, "users.json", cfg.UsersKey)
	assert.Equal(t, 3, cfg.PersistMaxRetries)
	assert.Equal(t, 23*time.Hour, cfg.AutoWarnAfter)
	assert.Equal(t, 24*time.Hour, cfg.AutoLockAfter)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "badger")
	t.Setenv("BADGER_PATH", "/tmp/cup")
	t.Setenv("AUTO_WARN_AFTER", "50m")
	t.Setenv("AUTO_LOCK_AFTER", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, BackendBadger, cfg.StorageBackend)
	assert.Equal(t, 50*time.Minute, cfg.AutoWarnAfter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func validConfig() Config {
	return Config{
		ServerPort:         8080,
		LogLevel:           "info",
		JWTSecretKey:       "secret",
		TokenTTL:           time.Hour,
		StorageBackend:     BackendMemory,
		DocumentKey:        "tournament_data.json",
		UsersKey:           "users.json",
		PersistMaxRetries:  3,
		AutoWarnAfter:      23 * time.Hour,
		AutoLockAfter:      24 * time.Hour,
		AnnounceChannelID:  "cup",
		CORSAllowedOrigins: []string{"*"},

		SchedulerRetryBackoff:    time.Second,
		SchedulerMaxRetryBackoff: time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.ServerPort = 70000 }, wantErr: "SERVER_PORT"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecretKey = "" }, wantErr: "JWT_SECRET_KEY"},
		{name: "warn after lock", mutate: func(c *Config) { c.AutoWarnAfter = 25 * time.Hour }, wantErr: "AUTO_WARN_AFTER"},
		{name: "backoff above max", mutate: func(c *Config) { c.SchedulerRetryBackoff = 2 * time.Minute }, wantErr: "SCHEDULER_RETRY_BACKOFF"},
		{name: "users key clashes", mutate: func(c *Config) { c.UsersKey = c.DocumentKey }, wantErr: "USERS_KEY"},
		{name: "negative retries", mutate: func(c *Config) { c.PersistMaxRetries = -1 }, wantErr: "PERSIST_MAX_RETRIES"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageBackend = BackendPostgres }, wantErr: "DATABASE_URL"},
		{name: "r2 without credentials", mutate: func(c *Config) { c.StorageBackend = BackendR2 }, wantErr: "R2_ACCESS_KEY_ID"},
		{name: "s3 without endpoint", mutate: func(c *Config) {
			c.StorageBackend = BackendS3
			c.R2AccessKeyID, c.R2SecretAccessKey, c.R2BucketName = "k", "s", "b"
		}, wantErr: "S3_ENDPOINT"},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "floppy" }, wantErr: "unknown STORAGE_BACKEND"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
