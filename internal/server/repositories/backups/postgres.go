// Package backups provides the PostgreSQL-backed repository for deployment
// backups and retention queries.
package backups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/dbx"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// PostgresRepository implements backup storage. Unlike the other
// repositories it holds the *sql.DB itself, because Delete spans two tables
// and runs inside a transaction.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Backup) error {
	query := `
		INSERT INTO backups (id, instance_id, created_at, expires_at, payload, payload_key, sync_history_refs)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.InstanceID, b.CreatedAt, b.ExpiresAt, b.Payload, b.PayloadKey, b.SyncHistoryRefs)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Backup, error) {
	query := `
		SELECT id, instance_id, created_at, expires_at, payload, payload_key, sync_history_refs
		FROM backups WHERE id = $1;
	`
	var b models.Backup
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.InstanceID, &b.CreatedAt, &b.ExpiresAt, &b.Payload, &b.PayloadKey, &b.SyncHistoryRefs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Kind: "backup", ID: id}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &b, nil
}

// Delete detaches any deployment histories still pointing at the backup and
// removes the row, in one transaction. Without the detach the FK on
// deployment_histories.backup_id would reject the delete for every backup a
// deployment ever referenced.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE deployment_histories SET backup_id = NULL WHERE backup_id = $1;`, id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM backups WHERE id = $1;`, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Backup, error) {
	query := `
		SELECT id, instance_id, created_at, expires_at, payload_key
		FROM backups WHERE expires_at IS NOT NULL AND expires_at < $1;
	`
	return r.selectList(ctx, query, now)
}

func (r *PostgresRepository) ListOrphans(ctx context.Context, cutoff time.Time) ([]*models.Backup, error) {
	query := `
		SELECT b.id, b.instance_id, b.created_at, b.expires_at, b.payload_key
		FROM backups b
		WHERE b.created_at < $1
			AND b.sync_history_refs = 0
			AND NOT EXISTS (
				SELECT 1 FROM deployment_histories d WHERE d.backup_id = b.id
			);
	`
	return r.selectList(ctx, query, cutoff)
}

func (r *PostgresRepository) CountReferences(ctx context.Context, id string) (*models.BackupReferences, error) {
	query := `
		SELECT b.sync_history_refs,
			(SELECT COUNT(*) FROM deployment_histories d WHERE d.backup_id = b.id)
		FROM backups b WHERE b.id = $1;
	`
	var refs models.BackupReferences
	err := r.db.QueryRowContext(ctx, query, id).Scan(&refs.SyncHistoryCount, &refs.DeploymentHistoryCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Kind: "backup", ID: id}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &refs, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backups;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) selectList(ctx context.Context, query string, args ...any) ([]*models.Backup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select backups: %w", err)
	}
	defer rows.Close()

	var result []*models.Backup
	for rows.Next() {
		var b models.Backup
		if err := rows.Scan(&b.ID, &b.InstanceID, &b.CreatedAt, &b.ExpiresAt, &b.PayloadKey); err != nil {
			return nil, err
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
