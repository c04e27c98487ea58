package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bennet-campus/campus-api/internal/models"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	BulkInsert(ctx context.Context, students []models.Student) ([]models.StudentImportConflict, error)
}

// StudentService manages the student directory that backs the attendance
// roster.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// StudentRequest is the create/update payload for a directory entry.
type StudentRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required"`
	RollNumber string `json:"roll_number" validate:"required"`
	Department string `json:"department"`
	Year       int    `json:"year" validate:"omitempty,min=1,max=6"`
}

// ImportRequest is the bulk payload for seeding the directory.
type ImportRequest struct {
	Students []StudentRequest `json:"students" validate:"required,min=1,max=500,dive"`
}

// ImportSummary reports a bulk import outcome.
type ImportSummary struct {
	Imported  int                            `json:"imported"`
	Conflicts []models.StudentImportConflict `json:"conflicts"`
}

// List returns directory entries matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one directory entry.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create adds a directory entry. Authority only.
func (s *StudentService) Create(ctx context.Context, req StudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		Email:      req.Email,
		FullName:   req.FullName,
		RollNumber: req.RollNumber,
		Department: req.Department,
		Year:       req.Year,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("email", student.Email))
	return student, nil
}

// Update edits a directory entry. Authority only.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Email = req.Email
	student.FullName = req.FullName
	student.RollNumber = req.RollNumber
	student.Department = req.Department
	student.Year = req.Year
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a directory entry. Authority only.
func (s *StudentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireAuthority(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// Import seeds the directory in bulk. Duplicate emails are reported as
// conflicts, not failures. Authority only.
func (s *StudentService) Import(ctx context.Context, req ImportRequest, actor *models.JWTClaims) (*ImportSummary, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	students := make([]models.Student, 0, len(req.Students))
	for _, entry := range req.Students {
		students = append(students, models.Student{
			Email:      entry.Email,
			FullName:   entry.FullName,
			RollNumber: entry.RollNumber,
			Department: entry.Department,
			Year:       entry.Year,
		})
	}
	conflicts, err := s.repo.BulkInsert(ctx, students)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import students")
	}
	summary := &ImportSummary{
		Imported:  len(students) - len(conflicts),
		Conflicts: conflicts,
	}
	s.logger.Info("students imported",
		zap.Int("imported", summary.Imported),
		zap.Int("conflicts", len(conflicts)))
	return summary, nil
}
