package backups

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_InsertsRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	expires := created.Add(30 * 24 * time.Hour)

	mock.ExpectExec(`INSERT INTO backups`).
		WithArgs("b1", "i1", created, &expires, []byte("snapshot"), "", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Backup{
		ID:         "b1",
		InstanceID: "i1",
		CreatedAt:  created,
		ExpiresAt:  &expires,
		Payload:    []byte("snapshot"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete_DetachesHistoriesInTransaction(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE deployment_histories SET backup_id = NULL WHERE backup_id = \$1`).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM backups WHERE id = \$1`).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE deployment_histories SET backup_id = NULL WHERE backup_id = \$1`).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM backups WHERE id = \$1`).
		WithArgs("b1").
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	if err := repo.Delete(context.Background(), "b1"); err == nil {
		t.Fatal("want error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM backups WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	var nf *common.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "backup" {
		t.Fatalf("want typed backup NotFoundError, got %v", err)
	}
}

func TestListOrphans_FiltersByRefsAndAge(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "instance_id", "created_at", "expires_at", "payload_key"}).
		AddRow("b-old", "i1", cutoff.Add(-24*time.Hour), nil, "")

	mock.ExpectQuery(`SELECT .* FROM backups b\s+WHERE b\.created_at < .* AND b\.sync_history_refs = 0\s+AND NOT EXISTS`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	got, err := repo.ListOrphans(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b-old" {
		t.Fatalf("unexpected orphans: %+v", got)
	}
}

func TestCountReferences(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT b\.sync_history_refs`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"sync_history_refs", "count"}).AddRow(2, 1))

	refs, err := repo.CountReferences(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs.SyncHistoryCount != 2 || refs.DeploymentHistoryCount != 1 {
		t.Fatalf("unexpected refs: %+v", refs)
	}
}
