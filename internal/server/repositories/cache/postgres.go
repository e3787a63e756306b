// Package cache provides the PostgreSQL-backed repository for versioned
// guide-definition cache entries.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/dbx"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// PostgresRepository implements cache-entry storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*models.CacheEntry, error) {
	query := `
		SELECT service_type, config_type, payload, compressed, version,
			commit_hash, item_count, size_bytes, updated_at
		FROM cache_entries WHERE service_type = $1 AND config_type = $2;
	`
	var e models.CacheEntry
	var st, ct string
	err := r.db.QueryRowContext(ctx, query, string(serviceType), string(configType)).Scan(
		&st, &ct, &e.Payload, &e.Compressed, &e.Version,
		&e.CommitHash, &e.ItemCount, &e.SizeBytes, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.ServiceType = common.ServiceType(st)
	e.ConfigType = common.ConfigType(ct)
	return &e, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, e *models.CacheEntry) (int64, error) {
	query := `
		INSERT INTO cache_entries (service_type, config_type, payload, compressed,
			version, commit_hash, item_count, size_bytes, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7, now())
		ON CONFLICT (service_type, config_type)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			compressed = EXCLUDED.compressed,
			version = cache_entries.version + 1,
			commit_hash = EXCLUDED.commit_hash,
			item_count = EXCLUDED.item_count,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = now()
		RETURNING version;
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query,
		string(e.ServiceType), string(e.ConfigType), e.Payload, e.Compressed,
		e.CommitHash, e.ItemCount, e.SizeBytes,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.CacheEntry, error) {
	query := `
		SELECT service_type, config_type, version, commit_hash, item_count,
			size_bytes, updated_at
		FROM cache_entries ORDER BY service_type, config_type;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select cache entries: %w", err)
	}
	defer rows.Close()

	var result []*models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var st, ct string
		if err := rows.Scan(&st, &ct, &e.Version, &e.CommitHash, &e.ItemCount, &e.SizeBytes, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.ServiceType = common.ServiceType(st)
		e.ConfigType = common.ConfigType(ct)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE service_type = $1 AND config_type = $2;`,
		string(serviceType), string(configType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteService(ctx context.Context, serviceType common.ServiceType) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE service_type = $1;`, string(serviceType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries;`)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
