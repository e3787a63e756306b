// Package deploy implements deployment preview and execution: reconciling a
// template against a remote instance's live state, applying the changes
// behind a per-instance guard, and rolling back from a backup. The policy is
// additive only; nothing is ever deleted on the remote.
package deploy

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/diff"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	"github.com/dmitrijs2005/guidesync/internal/server/remote"
	instancerepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/instances"
	templaterepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/templates"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"

	ConflictSpecificationMismatch = "specification_mismatch"
	ResolutionUseTemplate         = "use_template"
)

// PreviewItem is one planned create/update against the remote instance.
type PreviewItem struct {
	TrashID   string          `json:"trashId"`
	Name      string          `json:"name"`
	Action    string          `json:"action"`
	RemoteID  int64           `json:"remoteId,omitempty"`
	MatchedBy MatchSource     `json:"matchedBy,omitempty"`
	Spec      json.RawMessage `json:"-"`
}

// Conflict is a specification mismatch surfaced on the preview. A conflict
// that carries a suggested resolution starts out resolved; deployment applies
// the default unless the caller overrides it first.
type Conflict struct {
	TrashID             string `json:"trashId"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	SuggestedResolution string `json:"suggestedResolution"`
	Resolved            bool   `json:"resolved"`
}

// PreviewSummary aggregates a preview. DeletedCustomFormats is always zero.
type PreviewSummary struct {
	NewCustomFormats     int `json:"newCustomFormats"`
	UpdatedCustomFormats int `json:"updatedCustomFormats"`
	DeletedCustomFormats int `json:"deletedCustomFormats"`
	TotalConflicts       int `json:"totalConflicts"`
	UnresolvedConflicts  int `json:"unresolvedConflicts"`
}

// DeploymentPreview is the reconciliation of a template against an
// instance's live custom-format state.
type DeploymentPreview struct {
	TemplateID        string         `json:"templateId"`
	InstanceID        string         `json:"instanceId"`
	InstanceReachable bool           `json:"instanceReachable"`
	CanDeploy         bool           `json:"canDeploy"`
	Items             []PreviewItem  `json:"items"`
	Conflicts         []Conflict     `json:"conflicts"`
	Summary           PreviewSummary `json:"summary"`
}

// PreviewService builds deployment previews. It is read-only and safely
// concurrent with diffs and unrelated deployments.
type PreviewService struct {
	templates templaterepo.Repository
	instances instancerepo.Repository
	clients   remote.ClientFactory
	logger    logging.Logger
}

func NewPreviewService(templates templaterepo.Repository, instances instancerepo.Repository, clients remote.ClientFactory, logger logging.Logger) *PreviewService {
	return &PreviewService{templates: templates, instances: instances, clients: clients, logger: logger}
}

// Preview validates the pair, probes the instance and reconciles the
// template's effective format list against the remote state. An unreachable
// instance degrades the preview instead of failing it.
func (s *PreviewService) Preview(ctx context.Context, templateID, instanceID string) (*DeploymentPreview, error) {
	tpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !tpl.ServiceType.Equal(inst.ServiceType) {
		return nil, &common.ServiceMismatchError{
			TemplateService: string(tpl.ServiceType),
			InstanceService: string(inst.ServiceType),
		}
	}

	cfg, err := tpl.ParseConfig()
	if err != nil {
		return nil, err
	}

	effective := effectiveFormats(cfg, &inst.Overlay)

	preview := &DeploymentPreview{TemplateID: templateID, InstanceID: instanceID}

	client := s.clients.ClientFor(inst)
	remoteFormats, reachable := s.probe(ctx, client, instanceID)
	preview.InstanceReachable = reachable

	byTrashID := map[string]*matchedRemote{}
	byName := map[string]*remote.CustomFormat{}
	for i := range remoteFormats {
		rf := &remoteFormats[i]
		if id, source := ExtractTrashID(rf); id != "" {
			byTrashID[id] = &matchedRemote{cf: rf, source: source}
		}
		byName[rf.Name] = rf
	}

	for i := range effective {
		tf := &effective[i]
		item := PreviewItem{TrashID: tf.TrashID, Name: tf.Name, Action: ActionCreate}
		item.Spec = marshalSpec(tf)

		var matched *remote.CustomFormat
		if m, ok := byTrashID[tf.TrashID]; ok {
			matched = m.cf
			item.MatchedBy = m.source
		} else if rf, ok := byName[tf.Name]; ok {
			// Last-resort match; renames can make this wrong, which is why
			// the source is recorded rather than trusted silently.
			matched = rf
			item.MatchedBy = MatchByName
		}

		if matched != nil {
			item.Action = ActionUpdate
			item.RemoteID = matched.ID
			preview.Summary.UpdatedCustomFormats++

			if !specsMatchRemote(tf, matched) {
				preview.Conflicts = append(preview.Conflicts, Conflict{
					TrashID:             tf.TrashID,
					Name:                tf.Name,
					Type:                ConflictSpecificationMismatch,
					SuggestedResolution: ResolutionUseTemplate,
					Resolved:            true,
				})
			}
		} else {
			preview.Summary.NewCustomFormats++
		}
		preview.Items = append(preview.Items, item)
	}

	preview.Summary.TotalConflicts = len(preview.Conflicts)
	for _, c := range preview.Conflicts {
		if !c.Resolved {
			preview.Summary.UnresolvedConflicts++
		}
	}

	preview.CanDeploy = preview.InstanceReachable && preview.Summary.UnresolvedConflicts == 0

	return preview, nil
}

type matchedRemote struct {
	cf     *remote.CustomFormat
	source MatchSource
}

// probe checks reachability and fetches the live custom formats. Failure
// degrades to (nil, false); it never aborts the preview.
func (s *PreviewService) probe(ctx context.Context, client remote.InstanceClient, instanceID string) ([]remote.CustomFormat, bool) {
	if _, err := client.GetSystemStatus(ctx); err != nil {
		s.logger.Warn(ctx, "instance unreachable", "instance_id", instanceID, "error", err)
		return nil, false
	}
	formats, err := client.GetCustomFormats(ctx)
	if err != nil {
		s.logger.Warn(ctx, "listing remote custom formats failed", "instance_id", instanceID, "error", err)
		return nil, false
	}
	return formats, true
}

// effectiveFormats applies the instance overlay: disabled formats are
// dropped, score overrides replace template scores.
func effectiveFormats(cfg *models.TemplateConfig, overlay *models.InstanceOverlay) []models.TemplateCustomFormat {
	out := make([]models.TemplateCustomFormat, 0, len(cfg.CustomFormats))
	for _, tf := range cfg.CustomFormats {
		if !overlay.FormatIsEnabled(tf.TrashID) {
			continue
		}
		if score, ok := overlay.ScoreOverrides[tf.TrashID]; ok {
			s := score
			tf.ScoreOverride = &s
		}
		out = append(out, tf)
	}
	return out
}

func marshalSpec(tf *models.TemplateCustomFormat) json.RawMessage {
	specs, err := json.Marshal(tf.OriginalConfig.Specifications)
	if err != nil {
		return nil
	}
	return specs
}

func specsMatchRemote(tf *models.TemplateCustomFormat, rf *remote.CustomFormat) bool {
	remoteSpecs := make([]json.RawMessage, 0, len(rf.Specifications))
	for _, sp := range rf.Specifications {
		b, err := json.Marshal(sp)
		if err != nil {
			return false
		}
		remoteSpecs = append(remoteSpecs, b)
	}
	return diff.SpecsEqual(tf.OriginalConfig.Specifications, remoteSpecs)
}
