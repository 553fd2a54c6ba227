package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "storage", cfg.DBSchema)
	assert.Equal(t, "memory", cfg.DefaultStorageBackend)
	assert.Empty(t, cfg.TemporaryStorageBackend)
	assert.Equal(t, 15*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.TemporaryTTL)
	assert.Zero(t, cfg.CacheSize)
	assert.True(t, cfg.EnableEventLogging)
	assert.False(t, cfg.EnableEvents)
}

func TestOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9000"),
		WithEnvironment("testing"),
		WithDatabase("postgres", "postgres://localhost/db"),
		WithDatabaseSchema("files"),
		WithAutoMigrate(true),
		WithFilesystemStorage("", "/data"),
		WithS3Storage("archive", "bucket", ""),
		WithS3Credentials("archive", "key", "secret"),
		WithS3Endpoint("archive", "http://minio:9000", true),
		WithS3CreateBucket("archive", true),
		WithDefaultStorage("archive"),
		WithTemporaryStorage("fs"),
		WithCleanupInterval(time.Minute),
		WithTemporaryTTL(time.Hour),
		WithCache(100, time.Second),
		WithEvents(true, "lifecycle"),
		WithEventLogging(false),
	)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "testing", cfg.Environment)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "files", cfg.DBSchema)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "archive", cfg.DefaultStorageBackend)
	assert.Equal(t, "fs", cfg.TemporaryStorageBackend)

	archive := cfg.findBackend("archive")
	require.NotNil(t, archive)
	assert.Equal(t, "s3", archive.Type)
	assert.Equal(t, "us-east-1", archive.Config["region"])
	assert.Equal(t, "key", archive.Config["access_key_id"])
	assert.Equal(t, "http://minio:9000", archive.Config["endpoint"])
	assert.Equal(t, true, archive.Config["use_path_style"])
	assert.Equal(t, true, archive.Config["create_bucket_if_not_exist"])

	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.TemporaryTTL)
	assert.Equal(t, 100, cfg.CacheSize)
	assert.True(t, cfg.EnableEvents)
	assert.Equal(t, "lifecycle", cfg.EventsTopic)
	assert.False(t, cfg.EnableEventLogging)
}

func TestOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"empty port", WithPort(""), "port cannot be empty"},
		{"unknown database", WithDatabase("mysql", "x"), "database type must be"},
		{"postgres without url", WithDatabase("postgres", ""), "database URL is required"},
		{"sqlite without path", WithDatabase("sqlite", ""), "database path is required"},
		{"empty base dir", WithFilesystemStorage("fs", ""), "base directory cannot be empty"},
		{"empty bucket", WithS3Storage("s3", "", ""), "S3 bucket cannot be empty"},
		{"zero interval", WithCleanupInterval(0), "cleanup interval must be positive"},
		{"negative ttl", WithTemporaryTTL(-time.Second), "temporary TTL must be positive"},
		{"negative cache", WithCache(-1, time.Second), "cache size cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	_, err := Load(WithDefaultStorage("missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default storage backend 'missing' not found")

	_, err = Load(WithTemporaryStorage("missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporary storage backend 'missing' not found")

	_, err = Load(WithCache(10, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_ttl must be positive")

	_, err = Load(nil, WithPort("1"))
	require.NoError(t, err)
}
