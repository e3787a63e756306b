package instances

import (
	"context"

	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, i *models.Instance) error
	GetByID(ctx context.Context, id string) (*models.Instance, error)
	List(ctx context.Context) ([]*models.Instance, error)
	Update(ctx context.Context, i *models.Instance) error
	Delete(ctx context.Context, id string) error
}
