// Package repomanager aggregates the per-entity repositories behind one
// construction point and owns database setup (driver, migrations).
package repomanager

import (
	"database/sql"

	"github.com/dmitrijs2005/guidesync/internal/server/repositories/backups"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/cache"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/deployments"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/instances"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/templates"
)

type RepositoryManager interface {
	Conn() *sql.DB
	Templates() templates.Repository
	Instances() instances.Repository
	CacheEntries() cache.Repository
	Backups() backups.Repository
	Deployments() deployments.Repository
	Close() error
}
