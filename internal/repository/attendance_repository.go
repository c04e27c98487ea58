package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bennet-campus/campus-api/internal/models"
)

const attendanceColumns = "id, class_id, student_id, student_email, date, status, marked_by, recorded_at"

// AttendanceRepository is the ledger: append/update storage of per-student,
// per-class, per-day attendance, keyed on (class_id, student_id, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByKey looks a record up by its natural key.
func (r *AttendanceRepository) FindByKey(ctx context.Context, classID, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE class_id = $1 AND student_id = $2 AND date = $3`, attendanceColumns)
	if err := r.db.GetContext(ctx, &record, query, classID, studentID, models.DateOnly(date)); err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert writes a new record and reports false when the natural key already
// exists. Used by the redemption path, where a duplicate is a harmless no-op.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Date = models.DateOnly(record.Date)
	query := `INSERT INTO attendance_records (id, class_id, student_id, student_email, date, status, marked_by, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (class_id, student_id, date) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query, record.ID, record.ClassID, record.StudentID, record.StudentEmail, record.Date, record.Status, record.MarkedBy, record.RecordedAt).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	return true, nil
}

// Upsert inserts or overwrites the record for its natural key. Used by the
// authority override path; last write wins.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Date = models.DateOnly(record.Date)
	query := fmt.Sprintf(`INSERT INTO attendance_records (id, class_id, student_id, student_email, date, status, marked_by, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (class_id, student_id, date)
DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, recorded_at = EXCLUDED.recorded_at
RETURNING %s`, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.ClassID, record.StudentID, record.StudentEmail, record.Date, record.Status, record.MarkedBy, record.RecordedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}

// ListByClassAndDate returns all records for one class/day.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE class_id = $1 AND date = $2 ORDER BY recorded_at`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, models.DateOnly(date)); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// CountPresent counts present-status records for one class/day.
func (r *AttendanceRepository) CountPresent(ctx context.Context, classID string, date time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM attendance_records
WHERE class_id = $1 AND date = $2 AND status = $3`
	if err := r.db.GetContext(ctx, &count, query, classID, models.DateOnly(date), models.AttendanceStatusPresent); err != nil {
		return 0, fmt.Errorf("count present: %w", err)
	}
	return count, nil
}

// StudentHistory returns a student's attendance history, newest first.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	where := []string{"ar.student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, models.DateOnly(*from))
	}
	if to != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, models.DateOnly(*to))
	}
	query := fmt.Sprintf(`SELECT ar.class_id, cs.subject, ar.date, ar.status
FROM attendance_records ar
JOIN class_sessions cs ON cs.id = ar.class_id
WHERE %s
ORDER BY ar.date DESC`, strings.Join(where, " AND "))
	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}
