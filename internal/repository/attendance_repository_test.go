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

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_id", "student_id", "student_email", "date", "status", "marked_by", "recorded_at"})
}

func TestAttendanceRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM attendance_records\nWHERE class_id = \\$1 AND student_id = \\$2 AND date = \\$3").
		WithArgs("c1", "s1", day).
		WillReturnRows(attendanceRows().AddRow("a1", "c1", "s1", "s1@campus.edu", day, "present", nil, time.Now()))

	record, err := repo.FindByKey(context.Background(), "c1", "s1", day.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "a1", record.ID)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "c1", "s1", "s1@campus.edu", sqlmock.AnyArg(), "present", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	inserted, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		ClassID:      "c1",
		StudentID:    "s1",
		StudentEmail: "s1@campus.edu",
		Date:         time.Now().UTC(),
		Status:       models.AttendanceStatusPresent,
		RecordedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertConflictIsNoOp(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	// ON CONFLICT DO NOTHING returns no row; the repo reports not-inserted
	// without an error.
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnError(sql.ErrNoRows)

	inserted, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		ClassID:   "c1",
		StudentID: "s1",
		Date:      time.Now().UTC(),
		Status:    models.AttendanceStatusPresent,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertOverwrites(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	markedBy := "admin@campus.edu"
	mock.ExpectQuery("INSERT INTO attendance_records (.+) ON CONFLICT \\(class_id, student_id, date\\)\nDO UPDATE SET").
		WillReturnRows(attendanceRows().AddRow("a1", "c1", "s1", "s1@campus.edu", day, "absent", markedBy, time.Now()))

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		ClassID:      "c1",
		StudentID:    "s1",
		StudentEmail: "s1@campus.edu",
		Date:         day,
		Status:       models.AttendanceStatusAbsent,
		MarkedBy:     &markedBy,
		RecordedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusAbsent, stored.Status)
	require.NotNil(t, stored.MarkedBy)
	assert.Equal(t, markedBy, *stored.MarkedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountPresent(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM attendance_records").
		WithArgs("c1", day, "present").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountPresent(context.Background(), "c1", day)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentHistoryRange(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"class_id", "subject", "date", "status"}).
		AddRow("c1", "Physics", from.AddDate(0, 0, 1), "present")
	mock.ExpectQuery("SELECT ar.class_id, cs.subject, ar.date, ar.status\nFROM attendance_records ar\nJOIN class_sessions cs").
		WithArgs("s1", from, to).
		WillReturnRows(rows)

	history, err := repo.StudentHistory(context.Background(), "s1", &from, &to)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Physics", history[0].Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}
