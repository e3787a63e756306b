// Package template implements the template lifecycle: creation from guide
// definitions, manual edits, auto-sync advances and soft deletion. Every
// mutation appends to the template's changelog so diffs can be reconstructed
// later without refetching the guide corpus.
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	templaterepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/templates"
)

type Service struct {
	repo   templaterepo.Repository
	logger logging.Logger

	now   func() time.Time
	newID func() string
}

func NewService(repo templaterepo.Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now, newID: uuid.NewString}
}

// Create stores a new template pinned at the given guide commit. The config
// must decode; a template is never born corrupt.
func (s *Service) Create(ctx context.Context, name string, serviceType common.ServiceType, config *models.TemplateConfig, commitHash string) (*models.Template, error) {
	if common.ParseServiceType(string(serviceType)) == "" {
		return nil, fmt.Errorf("unknown service type %q: %w", serviceType, common.ErrorInternal)
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding template config: %w", err)
	}

	t := &models.Template{
		ID:          s.newID(),
		Name:        name,
		ServiceType: serviceType,
		ConfigData:  data,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
		ChangeLog: []models.ChangeEvent{{
			Kind:        models.EventCreated,
			At:          s.now(),
			Description: fmt.Sprintf("created from guide commit %s", short(commitHash)),
		}},
	}
	if commitHash != "" {
		t.CommitHash = &commitHash
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "template created", "template_id", t.ID, "name", name, "service", string(serviceType))
	return t, nil
}

// Clone copies an existing template under a new name. The clone starts a
// fresh changelog; history belongs to the original.
func (s *Service) Clone(ctx context.Context, id, name string) (*models.Template, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := &models.Template{
		ID:                          s.newID(),
		Name:                        name,
		ServiceType:                 src.ServiceType,
		ConfigData:                  append(json.RawMessage(nil), src.ConfigData...),
		CommitHash:                  src.CommitHash,
		HasUserModifications:        src.HasUserModifications,
		SourceQualityProfileTrashID: src.SourceQualityProfileTrashID,
		CreatedAt:                   s.now(),
		UpdatedAt:                   s.now(),
		ChangeLog: []models.ChangeEvent{{
			Kind:        models.EventCreated,
			At:          s.now(),
			Description: fmt.Sprintf("cloned from %s", src.Name),
		}},
	}

	if err := s.repo.Create(ctx, clone); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "template cloned", "template_id", clone.ID, "source_id", id)
	return clone, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, serviceType common.ServiceType) ([]*models.Template, error) {
	return s.repo.List(ctx, serviceType)
}

// UpdateConfig replaces the template's config with a user edit. The template
// is marked as user-modified, which makes later auto-syncs surface score
// overrides as sticky instead of silently reverting them.
func (s *Service) UpdateConfig(ctx context.Context, id string, config *models.TemplateConfig, description string) (*models.Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding template config: %w", err)
	}

	t.ConfigData = data
	t.HasUserModifications = true
	t.UpdatedAt = s.now()
	t.ChangeLog = append(t.ChangeLog, models.ChangeEvent{
		Kind:        models.EventManualEdit,
		At:          s.now(),
		Description: description,
	})

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ApplyAutoSync advances the template to a new guide commit: the config is
// replaced with the synced one and the change set is recorded in the
// changelog so the same-commit diff can replay it later.
func (s *Service) ApplyAutoSync(ctx context.Context, id string, config *models.TemplateConfig, sync *models.AutoSyncEvent) (*models.Template, error) {
	if sync == nil || sync.ToCommitHash == "" {
		return nil, fmt.Errorf("auto-sync without target commit: %w", common.ErrorInternal)
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding template config: %w", err)
	}

	t.ConfigData = data
	t.CommitHash = &sync.ToCommitHash
	t.UpdatedAt = s.now()
	t.ChangeLog = append(t.ChangeLog, models.ChangeEvent{
		Kind:     models.EventAutoSync,
		At:       s.now(),
		AutoSync: sync,
	})

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "template synced",
		"template_id", id,
		"commit", short(sync.ToCommitHash),
		"added", len(sync.Added),
		"removed", len(sync.Removed),
		"updated", len(sync.Updated),
	)
	return t, nil
}

// RecordDeployment appends a deployed marker to the changelog.
func (s *Service) RecordDeployment(ctx context.Context, id, instanceName string) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.UpdatedAt = s.now()
	t.ChangeLog = append(t.ChangeLog, models.ChangeEvent{
		Kind:        models.EventDeployed,
		At:          s.now(),
		Description: fmt.Sprintf("deployed to %s", instanceName),
	})
	return s.repo.Update(ctx, t)
}

// SoftDelete tombstones the template. The row survives so deployment history
// keeps resolving, but listings and lookups stop returning it.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "template deleted", "template_id", id)
	return nil
}

func short(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
