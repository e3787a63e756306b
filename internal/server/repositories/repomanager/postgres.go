package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/guidesync/internal/server/migrations"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/backups"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/cache"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/deployments"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/instances"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/templates"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
	db          *sql.DB
	templates   templates.Repository
	instances   instances.Repository
	cache       cache.Repository
	backups     backups.Repository
	deployments deployments.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB { return m.db }

func (m *PostgresRepositoryManager) Templates() templates.Repository { return m.templates }

func (m *PostgresRepositoryManager) Instances() instances.Repository { return m.instances }

func (m *PostgresRepositoryManager) CacheEntries() cache.Repository { return m.cache }

func (m *PostgresRepositoryManager) Backups() backups.Repository { return m.backups }

func (m *PostgresRepositoryManager) Deployments() deployments.Repository { return m.deployments }

func (m *PostgresRepositoryManager) Close() error { return m.db.Close() }

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:          db,
		templates:   templates.NewPostgresRepository(db),
		instances:   instances.NewPostgresRepository(db),
		cache:       cache.NewPostgresRepository(db),
		backups:     backups.NewPostgresRepository(db),
		deployments: deployments.NewPostgresRepository(db),
	}

	err = m.RunMigrations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
