package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennet-campus/campus-api/internal/models"
)

func newClassMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func classRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "subject", "day", "start_time", "end_time", "room", "teacher", "current_token", "created_at", "updated_at"})
}

func TestClassSessionRepositoryListByDay(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM class_sessions WHERE 1=1 AND day = \\$1").
		WithArgs("Monday").
		WillReturnRows(classRows().AddRow("c1", "Physics", "Monday", "09:00", "10:00", "B-204", "Dr. Rao", nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM class_sessions WHERE 1=1 AND day = \\$1").
		WithArgs("Monday").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sessions, total, err := repo.List(context.Background(), models.ClassSessionFilter{Day: "Monday"})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectExec("INSERT INTO class_sessions").
		WithArgs(sqlmock.AnyArg(), "Physics", "Monday", "09:00", "10:00", "B-204", "Dr. Rao", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.ClassSession{Subject: "Physics", Day: "Monday", StartTime: "09:00", EndTime: "10:00", Room: "B-204", Teacher: "Dr. Rao"}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectExec("UPDATE class_sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.ClassSession{ID: "missing", Subject: "Physics", Day: "Monday", StartTime: "09:00", EndTime: "10:00", Room: "B-204", Teacher: "Dr. Rao"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositorySetToken(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE class_sessions SET current_token = \\$2, updated_at = \\$3 WHERE id = \\$1").
		WithArgs("c1", "c1-12345-nonce", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetToken(context.Background(), "c1", "c1-12345-nonce", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositorySetTokenMissingClass(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectExec("UPDATE class_sessions SET current_token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetToken(context.Background(), "missing", "tok", time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
