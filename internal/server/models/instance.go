package models

import (
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
)

// Instance is a registered remote media-management server a template can be
// deployed to.
type Instance struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	ServiceType common.ServiceType `json:"serviceType"`
	URL         string             `json:"url"`
	APIKey      string             `json:"-"`
	Overlay     InstanceOverlay    `json:"overlay"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// InstanceOverlay layers instance-specific decisions on top of a template's
// defaults. FormatEnabled entries override the template default for that
// trash id (absent means enabled); ScoreOverrides override effective scores.
type InstanceOverlay struct {
	FormatEnabled  map[string]bool `json:"formatEnabled,omitempty"`
	ScoreOverrides map[string]int  `json:"scoreOverrides,omitempty"`
}

// FormatIsEnabled reports whether the given custom format should be deployed
// to this instance.
func (o *InstanceOverlay) FormatIsEnabled(trashID string) bool {
	if o.FormatEnabled == nil {
		return true
	}
	enabled, ok := o.FormatEnabled[trashID]
	if !ok {
		return true
	}
	return enabled
}
