// Package templates provides the PostgreSQL-backed repository for template
// persistence.
package templates

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

// PostgresRepository implements template storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const templateColumns = `id, name, service_type, config_data, commit_hash,
	has_user_modifications, change_log, source_quality_profile_trash_id,
	deleted_at, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, t *models.Template) error {
	changeLog, err := json.Marshal(t.ChangeLog)
	if err != nil {
		return fmt.Errorf("changelog encode: %w", err)
	}
	query := `
		INSERT INTO templates (id, name, service_type, config_data, commit_hash,
			has_user_modifications, change_log, source_quality_profile_trash_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.Name, string(t.ServiceType), []byte(t.ConfigData), t.CommitHash,
		t.HasUserModifications, changeLog, t.SourceQualityProfileTrashID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1 AND deleted_at IS NULL;`
	t, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Kind: "template", ID: id}
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresRepository) List(ctx context.Context, serviceType common.ServiceType) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates
		WHERE deleted_at IS NULL AND ($1 = '' OR service_type = $1)
		ORDER BY name;`
	rows, err := r.db.QueryContext(ctx, query, string(serviceType))
	if err != nil {
		return nil, fmt.Errorf("failed to select templates: %w", err)
	}
	defer rows.Close()

	var result []*models.Template
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, t *models.Template) error {
	changeLog, err := json.Marshal(t.ChangeLog)
	if err != nil {
		return fmt.Errorf("changelog encode: %w", err)
	}
	query := `
		UPDATE templates
		SET name = $2, config_data = $3, commit_hash = $4,
			has_user_modifications = $5, change_log = $6, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, []byte(t.ConfigData), t.CommitHash, t.HasUserModifications, changeLog)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "template", ID: t.ID}
	}
	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE templates SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL;`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "template", ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Template, error) {
	return r.scanRow(row)
}

func (r *PostgresRepository) scanRow(row rowScanner) (*models.Template, error) {
	var t models.Template
	var serviceType string
	var configData, changeLog []byte
	if err := row.Scan(
		&t.ID, &t.Name, &serviceType, &configData, &t.CommitHash,
		&t.HasUserModifications, &changeLog, &t.SourceQualityProfileTrashID,
		&t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.ServiceType = common.ServiceType(serviceType)
	t.ConfigData = configData

	events, err := models.ParseChangeLog(changeLog)
	if err != nil {
		return nil, &common.CorruptDataError{TemplateID: t.ID, Err: err}
	}
	t.ChangeLog = events
	return &t, nil
}
