// Package remote defines the client capability for talking to a remote
// media-management instance, plus the status-code classification the
// deployment retry policy depends on. The concrete HTTP client is
// collaborator code; this core treats its API semantics as opaque.
package remote

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// SystemStatus is the minimal reachability/identity probe result.
type SystemStatus struct {
	Version string `json:"version"`
	AppName string `json:"appName"`
}

// Specification is one matching rule inside a remote custom format. Fields
// carries implementation-specific keys; trash id extraction looks for a
// field literally named trash_id/trashId there.
type Specification struct {
	Name           string         `json:"name"`
	Implementation string         `json:"implementation"`
	Negate         bool           `json:"negate"`
	Required       bool           `json:"required"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// CustomFormat is a custom format as the remote instance stores it. Remote
// systems do not natively carry trash ids.
type CustomFormat struct {
	ID             int64           `json:"id,omitempty"`
	Name           string          `json:"name"`
	Specifications []Specification `json:"specifications"`
}

// CustomFormatSpec is the write payload for create/update calls.
type CustomFormatSpec struct {
	Name           string          `json:"name"`
	Specifications json.RawMessage `json:"specifications"`
}

// InstanceClient is the per-instance remote API surface this core consumes.
// All calls are idempotent-safe to retry except creates, which are retried
// only on transient failures (429/5xx).
type InstanceClient interface {
	GetSystemStatus(ctx context.Context) (*SystemStatus, error)
	GetCustomFormats(ctx context.Context) ([]CustomFormat, error)
	CreateCustomFormat(ctx context.Context, spec *CustomFormatSpec) (*CustomFormat, error)
	UpdateCustomFormat(ctx context.Context, id int64, spec *CustomFormatSpec) (*CustomFormat, error)
	GetQualityProfileSchema(ctx context.Context) (json.RawMessage, error)
	CreateQualityProfile(ctx context.Context, spec json.RawMessage) error
	UpdateQualityProfile(ctx context.Context, id int64, spec json.RawMessage) error
}

// ClientFactory builds an InstanceClient for a registered instance.
type ClientFactory interface {
	ClientFor(instance *models.Instance) InstanceClient
}
