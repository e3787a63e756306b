// Package models defines the persistent entities shared by repositories and
// services: templates, cache entries, backups, deployment history, instances,
// and the guide definition shapes they embed.
package models

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
)

// Template is the local, versioned copy of a desired custom-format /
// quality-profile configuration, independent of any specific remote instance.
type Template struct {
	ID                          string             `json:"id"`
	Name                        string             `json:"name"`
	ServiceType                 common.ServiceType `json:"serviceType"`
	ConfigData                  json.RawMessage    `json:"configData"`
	CommitHash                  *string            `json:"commitHash"`
	HasUserModifications        bool               `json:"hasUserModifications"`
	ChangeLog                   []ChangeEvent      `json:"changeLog"`
	SourceQualityProfileTrashID *string            `json:"sourceQualityProfileTrashId"`
	DeletedAt                   *time.Time         `json:"deletedAt"`
	CreatedAt                   time.Time          `json:"createdAt"`
	UpdatedAt                   time.Time          `json:"updatedAt"`
}

// TemplateConfig is the parsed form of Template.ConfigData.
type TemplateConfig struct {
	CustomFormats      []TemplateCustomFormat      `json:"customFormats"`
	CustomFormatGroups []TemplateCustomFormatGroup `json:"customFormatGroups"`
	QualityProfile     *QualityProfileSettings     `json:"qualityProfile,omitempty"`
}

// TemplateCustomFormat is a custom format as saved inside a template.
// Identity is TrashID, globally unique within the upstream corpus.
type TemplateCustomFormat struct {
	TrashID           string          `json:"trashId"`
	Name              string          `json:"name"`
	ScoreOverride     *int            `json:"scoreOverride,omitempty"`
	OriginalConfig    GuideCustomFormat `json:"originalConfig"`
	ConditionsEnabled map[string]bool `json:"conditionsEnabled,omitempty"`
}

// TemplateCustomFormatGroup is a guide group the template has opted into.
type TemplateCustomFormatGroup struct {
	TrashID string `json:"trashId"`
	Name    string `json:"name"`
}

// QualityProfileSettings carries the quality-profile portion of a template's
// config. ScoreSet names which of the upstream per-format score sets applies.
type QualityProfileSettings struct {
	Name          string `json:"name"`
	ScoreSet      string `json:"scoreSet,omitempty"`
	UpgradeAllowed bool  `json:"upgradeAllowed,omitempty"`
	Cutoff        string `json:"cutoff,omitempty"`
}

// ParseConfig decodes ConfigData. A parse failure is fatal for the calling
// operation and is reported as a CorruptDataError naming the template;
// it must never be treated as an empty configuration.
func (t *Template) ParseConfig() (*TemplateConfig, error) {
	var cfg TemplateConfig
	if err := json.Unmarshal(t.ConfigData, &cfg); err != nil {
		return nil, &common.CorruptDataError{TemplateID: t.ID, Err: err}
	}
	return &cfg, nil
}

// IsDeleted reports whether the template carries a soft-delete tombstone.
func (t *Template) IsDeleted() bool { return t.DeletedAt != nil }
