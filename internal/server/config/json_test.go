package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_dsn":        "postgres://localhost/guidesync",
		"cache_stale_after":   "6h",
		"cache_compression":   false,
		"deploy_throttle":     "250ms",
		"retry_base_delay":    "2s",
		"retry_max_attempts":  5,
		"remote_timeout":      "10s",
		"backup_ttl":          "720h",
		"backup_grace_period": "72h",
		"cleanup_schedule":    "@every 30m",
		"s3_root_user":        "user",
		"s3_root_password":    "password",
		"s3_bucket":           "bucket",
		"s3_region":           "region",
		"s3_base_endpoint":    "base_endpoint",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "postgres://localhost/guidesync", cfg.DatabaseDSN)
		assert.Equal(t, 6*time.Hour, cfg.CacheStaleAfter)
		assert.False(t, cfg.CacheCompression)
		assert.Equal(t, 250*time.Millisecond, cfg.DeployThrottle)
		assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
		assert.Equal(t, 5, cfg.RetryMaxAttempts)
		assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
		assert.Equal(t, 720*time.Hour, cfg.BackupTTL)
		assert.Equal(t, 72*time.Hour, cfg.BackupGracePeriod)
		assert.Equal(t, "@every 30m", cfg.CleanupSchedule)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
	})

	t.Run("no CONFIG and no flags, no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			DatabaseDSN:       "postgres://defaults/guidesync",
			CacheStaleAfter:   12 * time.Hour,
			CacheCompression:  true,
			RetryMaxAttempts:  3,
			CleanupSchedule:   "@hourly",
			S3RootUser:        "s3root",
			S3RootPassword:    "s3rootpassword",
			S3Bucket:          "s3bucket",
			S3Region:          "s3region",
			S3BaseEndpoint:    "s3baseendpoint",
			BackupGracePeriod: 7 * 24 * time.Hour,
		}
		parseJson(cfg)

		assert.Equal(t, "postgres://defaults/guidesync", cfg.DatabaseDSN)
		assert.Equal(t, 12*time.Hour, cfg.CacheStaleAfter)
		assert.True(t, cfg.CacheCompression)
		assert.Equal(t, 3, cfg.RetryMaxAttempts)
		assert.Equal(t, "@hourly", cfg.CleanupSchedule)
		assert.Equal(t, "s3root", cfg.S3RootUser)
		assert.Equal(t, 7*24*time.Hour, cfg.BackupGracePeriod)
	})

	t.Run("partial json keeps remaining defaults", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"database_dsn": "postgres://partial/guidesync",
		})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "postgres://partial/guidesync", cfg.DatabaseDSN)
		assert.Equal(t, 12*time.Hour, cfg.CacheStaleAfter)
		assert.True(t, cfg.CacheCompression)
		assert.Equal(t, "@hourly", cfg.CleanupSchedule)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
