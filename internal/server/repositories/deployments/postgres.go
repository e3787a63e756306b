// Package deployments provides the PostgreSQL-backed repository for
// deployment history rows.
package deployments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/dbx"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// PostgresRepository implements deployment-history storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, h *models.DeploymentHistory) error {
	query := `
		INSERT INTO deployment_histories (id, template_id, instance_id, started_at, backup_id)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.ExecContext(ctx, query, h.ID, h.TemplateID, h.InstanceID, h.StartedAt, h.BackupID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, h *models.DeploymentHistory) error {
	applied, err := json.Marshal(h.AppliedConfigs)
	if err != nil {
		return fmt.Errorf("applied configs encode: %w", err)
	}
	failed, err := json.Marshal(h.FailedConfigs)
	if err != nil {
		return fmt.Errorf("failed configs encode: %w", err)
	}
	errList, err := json.Marshal(h.Errors)
	if err != nil {
		return fmt.Errorf("errors encode: %w", err)
	}
	query := `
		UPDATE deployment_histories
		SET completed_at = $2, status = $3, created_count = $4, updated_count = $5,
			failed_count = $6, applied_configs = $7, failed_configs = $8,
			backup_id = $9, errors = $10
		WHERE id = $1 AND completed_at IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query,
		h.ID, h.CompletedAt, string(h.Status), h.CreatedCount, h.UpdatedCount,
		h.FailedCount, applied, failed, h.BackupID, errList)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deployment %s already finalized", h.ID)
	}
	return nil
}

const historyColumns = `id, template_id, instance_id, started_at, completed_at,
	status, created_count, updated_count, failed_count, applied_configs,
	failed_configs, backup_id, errors, rolled_back_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.DeploymentHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM deployment_histories WHERE id = $1;`
	h, err := scanHistory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Kind: "deployment", ID: id}
		}
		return nil, err
	}
	return h, nil
}

func (r *PostgresRepository) ListByInstance(ctx context.Context, instanceID string, limit int) ([]*models.DeploymentHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM deployment_histories
		WHERE instance_id = $1 ORDER BY started_at DESC LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, query, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select deployments: %w", err)
	}
	defer rows.Close()

	var result []*models.DeploymentHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) MarkRolledBack(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deployment_histories SET rolled_back_at = $2 WHERE id = $1;`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "deployment", ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*models.DeploymentHistory, error) {
	var h models.DeploymentHistory
	var status string
	var applied, failed, errList []byte
	if err := row.Scan(
		&h.ID, &h.TemplateID, &h.InstanceID, &h.StartedAt, &h.CompletedAt,
		&status, &h.CreatedCount, &h.UpdatedCount, &h.FailedCount,
		&applied, &failed, &h.BackupID, &errList, &h.RolledBackAt,
	); err != nil {
		return nil, err
	}
	h.Status = models.DeploymentStatus(status)
	// The JSON columns stay NULL until the row is finalized.
	if len(applied) > 0 {
		if err := json.Unmarshal(applied, &h.AppliedConfigs); err != nil {
			return nil, fmt.Errorf("applied configs decode: %w", err)
		}
	}
	if len(failed) > 0 {
		if err := json.Unmarshal(failed, &h.FailedConfigs); err != nil {
			return nil, fmt.Errorf("failed configs decode: %w", err)
		}
	}
	if len(errList) > 0 {
		if err := json.Unmarshal(errList, &h.Errors); err != nil {
			return nil, fmt.Errorf("errors decode: %w", err)
		}
	}
	return &h, nil
}
