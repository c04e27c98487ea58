package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bennet-campus/campus-api/internal/models"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
)

type classSessionRepository interface {
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	Delete(ctx context.Context, id string) error
}

// ClassService manages the timetable's class directory. All writes are
// authority-gated at the service boundary, not only at the route layer.
type ClassService struct {
	repo      classSessionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classSessionRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ClassService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("timetable_day", func(fl validator.FieldLevel) bool {
		return models.ValidWeekday(fl.Field().String())
	})
	return svc
}

// ClassSessionRequest is the create/update payload for a class slot.
type ClassSessionRequest struct {
	Subject   string `json:"subject" validate:"required"`
	Day       string `json:"day" validate:"required,timetable_day"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Room      string `json:"room" validate:"required"`
	Teacher   string `json:"teacher" validate:"required"`
}

// List returns timetable entries, optionally scoped to one day.
func (s *ClassService) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, *models.Pagination, error) {
	if filter.Day != "" && !models.ValidWeekday(filter.Day) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown timetable day")
	}
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class session.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return session, nil
}

// Create adds a timetable entry. Authority only.
func (s *ClassService) Create(ctx context.Context, req ClassSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	session := &models.ClassSession{
		Subject:   req.Subject,
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
		Teacher:   req.Teacher,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", session.ID), zap.String("subject", session.Subject))
	return session, nil
}

// Update edits a timetable entry. Authority only.
func (s *ClassService) Update(ctx context.Context, id string, req ClassSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Subject = req.Subject
	session.Day = req.Day
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.Room = req.Room
	session.Teacher = req.Teacher
	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return session, nil
}

// Delete removes a timetable entry and, via cascade, its attendance records.
// Authority only.
func (s *ClassService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireAuthority(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

func (s *ClassService) validateRequest(req ClassSessionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must precede end_time")
	}
	return nil
}

// requireAuthority rejects actors that are missing or not in the authority
// role. The write boundary never trusts a client-reported role alone.
func requireAuthority(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "authority role required")
	}
	return nil
}
