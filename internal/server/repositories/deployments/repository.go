package deployments

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, h *models.DeploymentHistory) error
	// Finalize writes the terminal state. It only touches rows that have not
	// completed yet, so a history row is finalized at most once.
	Finalize(ctx context.Context, h *models.DeploymentHistory) error
	GetByID(ctx context.Context, id string) (*models.DeploymentHistory, error)
	ListByInstance(ctx context.Context, instanceID string, limit int) ([]*models.DeploymentHistory, error)
	MarkRolledBack(ctx context.Context, id string, at time.Time) error
}
