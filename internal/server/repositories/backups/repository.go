package backups

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, b *models.Backup) error
	GetByID(ctx context.Context, id string) (*models.Backup, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns backups whose expires_at has passed.
	ListExpired(ctx context.Context, now time.Time) ([]*models.Backup, error)
	// ListOrphans returns backups created before cutoff with zero references
	// from sync or deployment history.
	ListOrphans(ctx context.Context, cutoff time.Time) ([]*models.Backup, error)
	CountReferences(ctx context.Context, id string) (*models.BackupReferences, error)
	Count(ctx context.Context) (int, error)
}
