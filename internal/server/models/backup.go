package models

import "time"

// Backup is a snapshot of a remote instance's custom-format state taken
// immediately before a mutating deployment. Payload holds the snapshot when
// stored inline; PayloadKey points at the blob store when offloaded.
type Backup struct {
	ID              string     `json:"id"`
	InstanceID      string     `json:"instanceId"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	Payload         []byte     `json:"-"`
	PayloadKey      string     `json:"-"`
	SyncHistoryRefs int        `json:"syncHistoryRefs"`
}

// BackupReferences counts history rows that still point at a backup.
// A backup with zero references past the grace window is an orphan.
type BackupReferences struct {
	SyncHistoryCount       int `json:"syncHistoryCount"`
	DeploymentHistoryCount int `json:"deploymentHistoryCount"`
}

// Expired reports whether the backup's expiry has passed at the given time.
// Backups without an expiry never expire on their own.
func (b *Backup) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}

// CleanupStats summarizes one retention run.
type CleanupStats struct {
	ExpiredDeleted int           `json:"expiredDeleted"`
	OrphansDeleted int           `json:"orphansDeleted"`
	Examined       int           `json:"examined"`
	Duration       time.Duration `json:"duration"`
}
