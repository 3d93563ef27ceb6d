package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchdxg/internal/model"
)

func setupMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestInsertPost_UniqueViolationIsDuplicate(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO posts").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.InsertPost(context.Background(), samplePost("100", 1))
	assert.ErrorIs(t, err, model.ErrDuplicatePost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPost_OtherErrorsAreNotDuplicates(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO posts").WillReturnError(sql.ErrConnDone)

	err := s.InsertPost(context.Background(), samplePost("100", 1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrDuplicatePost))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestInsertPost_NoRowsAffectedIsDuplicate(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO posts").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.InsertPost(context.Background(), samplePost("100", 1))
	assert.ErrorIs(t, err, model.ErrDuplicatePost)
}

func TestUpsertUser_RebindsForPostgres(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.UpsertUser(context.Background(), sampleUser(1))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExists_QueryError(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("janedoe").WillReturnError(sql.ErrConnDone)

	_, err := s.Exists(context.Background(), "janedoe")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
