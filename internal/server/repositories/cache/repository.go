package cache

import (
	"context"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*models.CacheEntry, error)
	// Upsert stores the entry and returns the resulting version. The version
	// increments by exactly 1 relative to the prior row for the key; the
	// increment happens inside the upsert statement so it holds across
	// concurrent writers.
	Upsert(ctx context.Context, e *models.CacheEntry) (int64, error)
	// List returns all entries without payloads, for status/stats views.
	List(ctx context.Context) ([]*models.CacheEntry, error)
	Delete(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) error
	DeleteService(ctx context.Context, serviceType common.ServiceType) error
	DeleteAll(ctx context.Context) error
}
