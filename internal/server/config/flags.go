package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-f int      cache staleness threshold, hours
//	-z bool     compress cache payloads
//	-t int      deploy throttle, milliseconds
//	-r int      retry attempts per remote write
//	-w int      remote call timeout, seconds
//	-k int      backup grace period, hours
//	-n string   retention cron spec (e.g., "@hourly")
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in their stated unit and then
//     converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-f", "-z", "-t", "-r", "-w", "-k", "-n", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	cacheStaleAfter := fs.Int("f", int(config.CacheStaleAfter.Hours()), "cache staleness threshold (in hours)")
	fs.BoolVar(&config.CacheCompression, "z", config.CacheCompression, "compress cache payloads")
	deployThrottle := fs.Int("t", int(config.DeployThrottle.Milliseconds()), "deploy throttle (in milliseconds)")
	fs.IntVar(&config.RetryMaxAttempts, "r", config.RetryMaxAttempts, "retry attempts per remote write")
	remoteTimeout := fs.Int("w", int(config.RemoteTimeout.Seconds()), "remote call timeout (in seconds)")
	backupGracePeriod := fs.Int("k", int(config.BackupGracePeriod.Hours()), "backup grace period (in hours)")
	fs.StringVar(&config.CleanupSchedule, "n", config.CleanupSchedule, "retention cron spec")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.CacheStaleAfter = time.Duration(*cacheStaleAfter) * time.Hour
	config.DeployThrottle = time.Duration(*deployThrottle) * time.Millisecond
	config.RemoteTimeout = time.Duration(*remoteTimeout) * time.Second
	config.BackupGracePeriod = time.Duration(*backupGracePeriod) * time.Hour
}
