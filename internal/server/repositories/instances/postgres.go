// Package instances provides the PostgreSQL-backed repository for registered
// remote instances.
package instances

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/dbx"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// PostgresRepository implements instance storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, i *models.Instance) error {
	overlay, err := json.Marshal(i.Overlay)
	if err != nil {
		return fmt.Errorf("overlay encode: %w", err)
	}
	query := `
		INSERT INTO instances (id, name, service_type, url, api_key, overlay)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = r.db.ExecContext(ctx, query,
		i.ID, i.Name, string(i.ServiceType), i.URL, i.APIKey, overlay)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	query := `
		SELECT id, name, service_type, url, api_key, overlay, created_at, updated_at
		FROM instances WHERE id = $1;
	`
	i, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Kind: "instance", ID: id}
		}
		return nil, err
	}
	return i, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Instance, error) {
	query := `
		SELECT id, name, service_type, url, api_key, overlay, created_at, updated_at
		FROM instances ORDER BY name;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select instances: %w", err)
	}
	defer rows.Close()

	var result []*models.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, i *models.Instance) error {
	overlay, err := json.Marshal(i.Overlay)
	if err != nil {
		return fmt.Errorf("overlay encode: %w", err)
	}
	query := `
		UPDATE instances
		SET name = $2, url = $3, api_key = $4, overlay = $5, updated_at = now()
		WHERE id = $1;
	`
	res, err := r.db.ExecContext(ctx, query, i.ID, i.Name, i.URL, i.APIKey, overlay)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "instance", ID: i.ID}
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*models.Instance, error) {
	var i models.Instance
	var serviceType string
	var overlay []byte
	if err := row.Scan(&i.ID, &i.Name, &serviceType, &i.URL, &i.APIKey, &overlay, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.ServiceType = common.ServiceType(serviceType)
	if err := json.Unmarshal(overlay, &i.Overlay); err != nil {
		return nil, fmt.Errorf("overlay decode: %w", err)
	}
	return &i, nil
}
