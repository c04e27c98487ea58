package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bennet-campus/campus-api/internal/models"
)

const classSessionColumns = "id, subject, day, start_time, end_time, room, teacher, current_token, created_at, updated_at"

// ClassSessionRepository handles persistence for timetabled class slots.
type ClassSessionRepository struct {
	db *sqlx.DB
}

// NewClassSessionRepository constructs the repository.
func NewClassSessionRepository(db *sqlx.DB) *ClassSessionRepository {
	return &ClassSessionRepository{db: db}
}

// List returns class sessions matching the filter, ordered by day and start.
func (r *ClassSessionRepository) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Day != "" {
		where = append(where, fmt.Sprintf("day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM class_sessions WHERE %s
ORDER BY day, start_time LIMIT %d OFFSET %d`, classSessionColumns, whereClause, size, offset)

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM class_sessions WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a single class session.
func (r *ClassSessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	var session models.ClassSession
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE id = $1", classSessionColumns)
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new class session.
func (r *ClassSessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	query := `INSERT INTO class_sessions (id, subject, day, start_time, end_time, room, teacher, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, session.ID, session.Subject, session.Day, session.StartTime, session.EndTime, session.Room, session.Teacher, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a class session.
func (r *ClassSessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	session.UpdatedAt = time.Now().UTC()
	query := `UPDATE class_sessions
SET subject = $2, day = $3, start_time = $4, end_time = $5, room = $6, teacher = $7, updated_at = $8
WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, session.ID, session.Subject, session.Day, session.StartTime, session.EndTime, session.Room, session.Teacher, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a class session; attendance rows cascade at the schema level.
func (r *ClassSessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete class session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetToken replaces the class's current attendance token. The previous token,
// if any, is overwritten and permanently superseded.
func (r *ClassSessionRepository) SetToken(ctx context.Context, id, token string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE class_sessions SET current_token = $2, updated_at = $3 WHERE id = $1`, id, token, now)
	if err != nil {
		return fmt.Errorf("set class token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set class token: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
