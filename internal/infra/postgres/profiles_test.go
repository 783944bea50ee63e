package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

var columns = []string{"id", "email", "password_hash", "display_name", "credits", "created_at"}

func setupStore(t *testing.T) (*ProfileStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewProfileStore(db, zap.NewNop()), mock
}

func TestGetByEmail_Found(t *testing.T) {
	store, mock := setupStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE email = $1")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("u-1", "ada@example.com", "hash", "Ada", 50, created))

	p, err := store.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, "hash", p.PasswordHash)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "Ada", *p.DisplayName)
	assert.Equal(t, int64(50), p.Credits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail_Missing(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(columns))

	p, err := store.GetByEmail(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := store.Create(context.Background(), &domain.Profile{ID: "u-1", Email: "ada@example.com", CreatedAt: time.Now()})

	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Email already registered", conflict.Message)
}

func TestCreate_ReturnsRow(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WithArgs("u-1", "ada@example.com", "hash", nil, now).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("u-1", "ada@example.com", "hash", nil, 0, now))

	p, err := store.Create(context.Background(), &domain.Profile{ID: "u-1", Email: "ada@example.com", PasswordHash: "hash", CreatedAt: now})
	require.NoError(t, err)
	assert.Nil(t, p.DisplayName)
	assert.Equal(t, int64(0), p.Credits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordHash(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET password_hash = $1 WHERE email = $2")).
		WithArgs("new-hash", "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET password_hash = $1 WHERE email = $2")).
		WithArgs("new-hash", "ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.UpdatePasswordHash(context.Background(), "ada@example.com", "new-hash"))

	err := store.UpdatePasswordHash(context.Background(), "ghost@example.com", "new-hash")
	var notFound *domain.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
