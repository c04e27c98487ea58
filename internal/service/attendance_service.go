package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bennet-campus/campus-api/internal/models"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
	"github.com/bennet-campus/campus-api/pkg/export"
	"github.com/bennet-campus/campus-api/pkg/qr"
	"github.com/bennet-campus/campus-api/pkg/qrtoken"
)

type attendanceLedger interface {
	FindByKey(ctx context.Context, classID, studentID string, date time.Time) (*models.AttendanceRecord, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	CountPresent(ctx context.Context, classID string, date time.Time) (int, error)
	StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
}

type classDirectory interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	SetToken(ctx context.Context, id, token string, now time.Time) error
}

type rosterDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	Count(ctx context.Context) (int, error)
}

type attendanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// AttendanceConfig tunes the flow around its fixed token window.
type AttendanceConfig struct {
	QRImageSize    int
	ScanSessionTTL time.Duration
	StatsCacheTTL  time.Duration
}

// AttendanceService orchestrates the class directory, token issuer, QR
// boundary, and ledger: an authority mints a rotating token, a student
// redeems it within the validity window, and the authority audits or
// overrides the result.
type AttendanceService struct {
	ledger    attendanceLedger
	classes   classDirectory
	roster    rosterDirectory
	cache     attendanceCache
	encoder   qr.Encoder
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AttendanceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	ledger attendanceLedger,
	classes classDirectory,
	roster rosterDirectory,
	cache attendanceCache,
	encoder qr.Encoder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config AttendanceConfig,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoder == nil {
		encoder = qr.NewPNGEncoder()
	}
	if config.QRImageSize <= 0 {
		config.QRImageSize = 256
	}
	if config.ScanSessionTTL <= 0 {
		config.ScanSessionTTL = 10 * time.Minute
	}
	if config.StatsCacheTTL <= 0 {
		config.StatsCacheTTL = 30 * time.Second
	}
	return &AttendanceService{
		ledger:    ledger,
		classes:   classes,
		roster:    roster,
		cache:     cache,
		encoder:   encoder,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests inject a fixed clock here.
func (s *AttendanceService) WithClock(now func() time.Time) *AttendanceService {
	if now != nil {
		s.now = now
	}
	return s
}

// MintToken rotates the attendance token for a class. The previous token is
// superseded immediately, even inside its own validity window.
func (s *AttendanceService) MintToken(ctx context.Context, classID string, actor *models.JWTClaims) (*models.MintedToken, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if _, err := s.findClass(ctx, classID); err != nil {
		return nil, err
	}

	now := s.now()
	token := qrtoken.Mint(classID, now)
	if err := s.classes.SetToken(ctx, classID, token, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store token")
	}

	s.metrics.RecordTokenMinted()
	s.logger.Info("attendance token minted", zap.String("class_id", classID), zap.String("minted_by", actor.Email))

	return &models.MintedToken{
		ClassID:   classID,
		Token:     token,
		MintedAt:  now,
		ExpiresAt: now.Add(qrtoken.Validity),
	}, nil
}

// TokenQR renders the class's current token as a QR PNG for display.
func (s *AttendanceService) TokenQR(ctx context.Context, classID string, actor *models.JWTClaims) ([]byte, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.CurrentToken == nil || *class.CurrentToken == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no active token")
	}
	png, err := s.encoder.EncodePNG(*class.CurrentToken, s.config.QRImageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode QR image")
	}
	return png, nil
}

// OpenScanSession registers a scanner session for a student. Exactly one
// redemption outcome is processed per session; further decodes replay it.
// The session is bound to its opener: Redeem ignores ids presented by any
// other student.
func (s *AttendanceService) OpenScanSession(ctx context.Context, actor *models.JWTClaims) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	id := newScanSessionID()
	state := map[string]string{"student_id": actor.UserID, "opened_at": s.now().Format(time.RFC3339)}
	if err := s.cache.Set(ctx, scanSessionKey(id), state, s.config.ScanSessionTTL); err != nil {
		s.logger.Warn("failed to persist scan session", zap.Error(err))
	}
	return id, nil
}

// RedeemRequest carries one decoded QR payload toward a target class.
type RedeemRequest struct {
	Token         string `json:"token" validate:"required"`
	ClassID       string `json:"class_id" validate:"required"`
	ScanSessionID string `json:"scan_session_id"`
}

// Redeem runs the validation chain for a scanned token and, when every check
// passes, writes a present record for the student and today. The chain fails
// fast: malformed, then expired, then wrong-class, then superseded token,
// then already-marked. Rejections are outcomes, not errors; expiry is checked
// before class match so a stale-but-matching scan reports the more actionable
// message. A superseded token is reported to the client as wrong-class.
func (s *AttendanceService) Redeem(ctx context.Context, req RedeemRequest, actor *models.JWTClaims) (*models.RedemptionResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redeem payload")
	}

	// A session carries replay semantics only for the student who opened it.
	// Unknown or foreign session ids are ignored so the redeem still counts
	// for the actor instead of consuming someone else's session.
	sessionID := req.ScanSessionID
	if sessionID != "" && !s.sessionOwnedBy(ctx, sessionID, actor.UserID) {
		sessionID = ""
	}

	if sessionID != "" {
		var stored models.RedemptionResult
		if err := s.cache.Get(ctx, scanOutcomeKey(sessionID), &stored); err == nil {
			stored.Replayed = true
			return &stored, nil
		}
	}

	now := s.now()
	result, err := s.evaluate(ctx, req, actor, now)
	if err != nil {
		return nil, err
	}

	label := redemptionLabel(result)
	if result.Reason == models.ReasonStaleToken {
		// Clients see the wrong-class vocabulary; the metric keeps the
		// distinct label.
		result.Reason = models.ReasonWrongClass
	}

	if sessionID != "" {
		won, cacheErr := s.cache.SetNX(ctx, scanOutcomeKey(sessionID), result, s.config.ScanSessionTTL)
		if cacheErr != nil {
			s.logger.Warn("failed to consume scan session", zap.Error(cacheErr))
		} else if !won {
			// Lost a race against another decode of the same session; the
			// first outcome stands.
			var stored models.RedemptionResult
			if err := s.cache.Get(ctx, scanOutcomeKey(sessionID), &stored); err == nil {
				stored.Replayed = true
				return &stored, nil
			}
		}
	}

	s.metrics.RecordRedemption(label)
	if result.Accepted() {
		s.invalidateStats(ctx, req.ClassID, now)
	}
	return result, nil
}

func (s *AttendanceService) evaluate(ctx context.Context, req RedeemRequest, actor *models.JWTClaims, now time.Time) (*models.RedemptionResult, error) {
	claims, err := qrtoken.Parse(req.Token)
	if err != nil {
		return rejected(models.ReasonMalformed), nil
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown target class degrades to the malformed outcome rather
			// than a fault.
			return rejected(models.ReasonMalformed), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if claims.Expired(now) {
		return rejected(models.ReasonExpired), nil
	}

	if claims.ClassID != req.ClassID {
		return rejected(models.ReasonWrongClass), nil
	}

	if class.CurrentToken == nil || *class.CurrentToken != req.Token {
		return rejected(models.ReasonStaleToken), nil
	}

	today := models.DateOnly(now)
	existing, err := s.ledger.FindByKey(ctx, req.ClassID, actor.UserID, today)
	if err == nil {
		return &models.RedemptionResult{Outcome: models.RedemptionRejected, Reason: models.ReasonAlreadyMarked, Record: existing}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ledger")
	}

	record := &models.AttendanceRecord{
		ClassID:      req.ClassID,
		StudentID:    actor.UserID,
		StudentEmail: actor.Email,
		Date:         today,
		Status:       models.AttendanceStatusPresent,
		RecordedAt:   now,
	}
	inserted, err := s.ledger.Insert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance record")
	}
	if !inserted {
		// A concurrent redeem for the same key won; report the no-op.
		existing, err := s.ledger.FindByKey(ctx, req.ClassID, actor.UserID, today)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload attendance record")
		}
		return &models.RedemptionResult{Outcome: models.RedemptionRejected, Reason: models.ReasonAlreadyMarked, Record: existing}, nil
	}

	return &models.RedemptionResult{Outcome: models.RedemptionAccepted, Record: record}, nil
}

// OverrideRequest is the authority's manual mark payload.
type OverrideRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

// SetAttendance upserts an attendance record under the authority's identity.
// No validity window applies; last write wins over any student-originated
// record with the same key.
func (s *AttendanceService) SetAttendance(ctx context.Context, req OverrideRequest, actor *models.JWTClaims) (*models.AttendanceRecord, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}

	if _, err := s.findClass(ctx, req.ClassID); err != nil {
		return nil, err
	}
	student, err := s.roster.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	status := models.AttendanceStatusAbsent
	if req.Present {
		status = models.AttendanceStatusPresent
	}
	now := s.now()
	markedBy := actor.Email
	record := &models.AttendanceRecord{
		ClassID:      req.ClassID,
		StudentID:    student.ID,
		StudentEmail: student.Email,
		Date:         models.DateOnly(now),
		Status:       status,
		MarkedBy:     &markedBy,
		RecordedAt:   now,
	}
	stored, err := s.ledger.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance record")
	}

	s.invalidateStats(ctx, req.ClassID, now)
	s.logger.Info("attendance overridden",
		zap.String("class_id", req.ClassID),
		zap.String("student_id", student.ID),
		zap.String("status", string(status)),
		zap.String("marked_by", actor.Email))
	return stored, nil
}

// StatusFor looks up the record for one (class, student, day) key. Students
// may only query themselves; nil means unmarked.
func (s *AttendanceService) StatusFor(ctx context.Context, classID, studentID string, date time.Time, actor *models.JWTClaims) (*models.AttendanceRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		studentID = actor.UserID
	}
	if classID == "" || studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id and student_id are required")
	}
	record, err := s.ledger.FindByKey(ctx, classID, studentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query ledger")
	}
	return record, nil
}

// StatsFor aggregates present records for one class/day against the roster.
func (s *AttendanceService) StatsFor(ctx context.Context, classID string, date time.Time, actor *models.JWTClaims) (*models.RosterStats, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}

	key := statsKey(classID, date)
	var cached models.RosterStats
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	}
	s.metrics.RecordCacheOperation(false)

	if _, err := s.findClass(ctx, classID); err != nil {
		return nil, err
	}
	present, err := s.ledger.CountPresent(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	rosterSize, err := s.roster.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to size roster")
	}

	stats := &models.RosterStats{
		ClassID:    classID,
		Date:       models.DateOnly(date),
		Present:    present,
		RosterSize: rosterSize,
	}
	if err := s.cache.Set(ctx, key, stats, s.config.StatsCacheTTL); err != nil {
		s.logger.Warn("failed to cache roster stats", zap.Error(err))
	}
	return stats, nil
}

// ClassSheet builds the authority audit view: every roster member with their
// record for the day, unmarked students included.
func (s *AttendanceService) ClassSheet(ctx context.Context, classID string, date time.Time, actor *models.JWTClaims) ([]models.ClassSheetRow, error) {
	if err := requireAuthority(actor); err != nil {
		return nil, err
	}
	if _, err := s.findClass(ctx, classID); err != nil {
		return nil, err
	}

	students, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.ledger.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	rows := make([]models.ClassSheetRow, 0, len(students))
	for _, student := range students {
		row := models.ClassSheetRow{
			StudentID:    student.ID,
			StudentEmail: student.Email,
			StudentName:  student.FullName,
		}
		if r, ok := byStudent[student.ID]; ok {
			row.Status = r.Status
			row.MarkedBy = r.MarkedBy
			recordedAt := r.RecordedAt
			row.RecordedAt = &recordedAt
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportSheet renders the class sheet as CSV or PDF bytes.
func (s *AttendanceService) ExportSheet(ctx context.Context, classID string, date time.Time, format string, actor *models.JWTClaims) ([]byte, string, error) {
	rows, err := s.ClassSheet(ctx, classID, date, actor)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Status", "Marked By", "Recorded At"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		status := "unmarked"
		if row.Status != "" {
			status = string(row.Status)
		}
		markedBy := ""
		if row.MarkedBy != nil {
			markedBy = *row.MarkedBy
		}
		recordedAt := ""
		if row.RecordedAt != nil {
			recordedAt = row.RecordedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":     row.StudentName,
			"Email":       row.StudentEmail,
			"Status":      status,
			"Marked By":   markedBy,
			"Recorded At": recordedAt,
		})
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		title := fmt.Sprintf("Attendance %s", models.DateOnly(date).Format("2006-01-02"))
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// StudentHistory returns a student's day-by-day attendance. Students may only
// query their own history.
func (s *AttendanceService) StudentHistory(ctx context.Context, studentID string, from, to *time.Time, actor *models.JWTClaims) ([]models.AttendanceHistoryRow, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		studentID = actor.UserID
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	rows, err := s.ledger.StudentHistory(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return rows, nil
}

func (s *AttendanceService) sessionOwnedBy(ctx context.Context, sessionID, studentID string) bool {
	var state map[string]string
	if err := s.cache.Get(ctx, scanSessionKey(sessionID), &state); err != nil {
		return false
	}
	return state["student_id"] == studentID
}

func (s *AttendanceService) findClass(ctx context.Context, classID string) (*models.ClassSession, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, classID string, now time.Time) {
	if err := s.cache.Delete(ctx, statsKey(classID, now)); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func rejected(reason models.RejectionReason) *models.RedemptionResult {
	return &models.RedemptionResult{Outcome: models.RedemptionRejected, Reason: reason}
}

func redemptionLabel(result *models.RedemptionResult) string {
	if result.Accepted() {
		return string(models.RedemptionAccepted)
	}
	return string(result.Reason)
}

func statsKey(classID string, date time.Time) string {
	return "attendance:stats:" + classID + ":" + models.DateOnly(date).Format("2006-01-02")
}

func newScanSessionID() string {
	return uuid.NewString()
}

func scanSessionKey(id string) string {
	return "attendance:scan:" + id
}

func scanOutcomeKey(id string) string {
	return "attendance:scan:" + id + ":outcome"
}
