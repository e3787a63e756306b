package templates

import (
	"context"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, serviceType common.ServiceType) ([]*models.Template, error)
	// Update persists config data, commit hash, modification flag and
	// changelog. Soft-deleted templates are not updatable.
	Update(ctx context.Context, t *models.Template) error
	// SoftDelete sets the tombstone; the row is never physically removed
	// while referenced.
	SoftDelete(ctx context.Context, id string) error
}
