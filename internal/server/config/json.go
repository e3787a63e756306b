package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/guidesync/internal/flagx"
	"github.com/dmitrijs2005/guidesync/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "12h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN       string         `json:"database_dsn"`
	CacheStaleAfter   timex.Duration `json:"cache_stale_after"`
	CacheCompression  *bool          `json:"cache_compression"`
	DeployThrottle    timex.Duration `json:"deploy_throttle"`
	RetryBaseDelay    timex.Duration `json:"retry_base_delay"`
	RetryMaxAttempts  int            `json:"retry_max_attempts"`
	RemoteTimeout     timex.Duration `json:"remote_timeout"`
	BackupTTL         timex.Duration `json:"backup_ttl"`
	BackupGracePeriod timex.Duration `json:"backup_grace_period"`
	CleanupSchedule   string         `json:"cleanup_schedule"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; when neither is set, no JSON file is loaded. Omitted fields keep
// their current values. If the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.CacheStaleAfter != 0 {
		config.CacheStaleAfter = c.CacheStaleAfter.Std()
	}
	if c.CacheCompression != nil {
		config.CacheCompression = *c.CacheCompression
	}
	if c.DeployThrottle != 0 {
		config.DeployThrottle = c.DeployThrottle.Std()
	}
	if c.RetryBaseDelay != 0 {
		config.RetryBaseDelay = c.RetryBaseDelay.Std()
	}
	if c.RetryMaxAttempts != 0 {
		config.RetryMaxAttempts = c.RetryMaxAttempts
	}
	if c.RemoteTimeout != 0 {
		config.RemoteTimeout = c.RemoteTimeout.Std()
	}
	if c.BackupTTL != 0 {
		config.BackupTTL = c.BackupTTL.Std()
	}
	if c.BackupGracePeriod != 0 {
		config.BackupGracePeriod = c.BackupGracePeriod.Std()
	}
	if c.CleanupSchedule != "" {
		config.CleanupSchedule = c.CleanupSchedule
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
