package models

import "time"

// DeploymentStatus is the final outcome of a deployment run.
type DeploymentStatus string

const (
	DeploymentSuccess        DeploymentStatus = "SUCCESS"
	DeploymentPartialSuccess DeploymentStatus = "PARTIAL_SUCCESS"
	DeploymentFailed         DeploymentStatus = "FAILED"
)

// DeploymentHistory records one deployment attempt. It is created at start,
// finalized exactly once, and immutable afterwards except for rollback
// linkage.
type DeploymentHistory struct {
	ID           string           `json:"id"`
	TemplateID   string           `json:"templateId"`
	InstanceID   string           `json:"instanceId"`
	StartedAt    time.Time        `json:"startedAt"`
	CompletedAt  *time.Time       `json:"completedAt"`
	Status       DeploymentStatus `json:"status"`
	CreatedCount int              `json:"createdCount"`
	UpdatedCount int              `json:"updatedCount"`
	FailedCount  int              `json:"failedCount"`
	AppliedConfigs []AppliedConfig `json:"appliedConfigs,omitempty"`
	FailedConfigs  []FailedConfig  `json:"failedConfigs,omitempty"`
	BackupID     *string          `json:"backupRef,omitempty"`
	Errors       []string         `json:"errors,omitempty"`
	RolledBackAt *time.Time       `json:"rolledBackAt,omitempty"`
}

// AppliedConfig records one custom format successfully written to the remote.
type AppliedConfig struct {
	TrashID  string `json:"trashId"`
	Name     string `json:"name"`
	Action   string `json:"action"`
	RemoteID int64  `json:"remoteId,omitempty"`
}

// FailedConfig records one custom format the remote rejected.
type FailedConfig struct {
	TrashID string `json:"trashId"`
	Name    string `json:"name"`
	Action  string `json:"action"`
	Error   string `json:"error"`
}
