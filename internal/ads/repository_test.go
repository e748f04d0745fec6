package ads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinestream/backend/internal/models"
)

var adRowColumns = []string{"id", "ref", "title", "source_url", "s3_key", "file_type", "click_url", "position", "is_active", "created_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestRepositoryListActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id1, id2 := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM advertisements WHERE is_active = TRUE ORDER BY position`).
		WillReturnRows(pgxmock.NewRows(adRowColumns).
			AddRow(id1, "dQw4w9WgXcQ", "Trailer", "https://youtu.be/dQw4w9WgXcQ", "", "", "", 0, true, created).
			AddRow(id2, "promo", "Promo", "https://cdn.cinestream.tv/ads/promo/p.mp4", "ads/promo/p.mp4", "video/mp4", "https://shop", 1, true, created))

	list, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dQw4w9WgXcQ", list[0].Ref)
	assert.Equal(t, "ads/promo/p.mp4", list[1].S3Key)
	assert.Equal(t, 1, list[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM advertisements ORDER BY position`).WillReturnError(errors.New("conn reset"))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list advertisements")
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()
	a := &models.Advertisement{Ref: "promo", Title: "Promo", SourceURL: "https://youtu.be/x", IsActive: true}

	mock.ExpectQuery(`INSERT INTO advertisements`).
		WithArgs("promo", "Promo", "https://youtu.be/x", "", "", "", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "position", "created_at"}).AddRow(id, 3, now))

	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, id, a.ID)
	assert.Equal(t, 3, a.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM advertisements WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryToggleActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`UPDATE advertisements SET is_active = NOT is_active`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"is_active"}).AddRow(false))

	active, err := repo.ToggleActive(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRepositoryDeleteReturnsKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`DELETE FROM advertisements`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"s3_key"}).AddRow("ads/promo/p.mp4"))

	key, err := repo.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ads/promo/p.mp4", key)

	mock.ExpectQuery(`DELETE FROM advertisements`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = repo.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryReorder(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE advertisements SET position`).WithArgs(0, "b").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE advertisements SET position`).WithArgs(1, "a").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Reorder(context.Background(), []string{"b", "a"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryReorderUnknownRef(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE advertisements SET position`).WithArgs(0, "ghost").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Reorder(context.Background(), []string{"ghost"})
	assert.ErrorIs(t, err, ErrUnknownRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateDuplicateRef(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO advertisements`).
		WithArgs("promo", "", "", "", "", "", true).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "advertisements_ref_key"})

	err := repo.Create(context.Background(), &models.Advertisement{Ref: "promo", IsActive: true})
	assert.ErrorIs(t, err, ErrDuplicateRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}
