package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bennet-campus/campus-api/internal/middleware"
	"github.com/bennet-campus/campus-api/internal/models"
	"github.com/bennet-campus/campus-api/internal/service"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
	"github.com/bennet-campus/campus-api/pkg/qrtoken"
)

type fakeLedger struct {
	records map[string]*models.AttendanceRecord
}

func ledgerKey(classID, studentID string, date time.Time) string {
	return classID + "|" + studentID + "|" + models.DateOnly(date).Format("2006-01-02")
}

func (f *fakeLedger) FindByKey(ctx context.Context, classID, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	record, ok := f.records[ledgerKey(classID, studentID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (f *fakeLedger) Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	key := ledgerKey(record.ClassID, record.StudentID, record.Date)
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	if record.ID == "" {
		record.ID = "rec-1"
	}
	f.records[key] = record
	return true, nil
}

func (f *fakeLedger) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	f.records[ledgerKey(record.ClassID, record.StudentID, record.Date)] = record
	return record, nil
}

func (f *fakeLedger) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, record := range f.records {
		if record.ClassID == classID && record.Date.Equal(models.DateOnly(date)) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeLedger) CountPresent(ctx context.Context, classID string, date time.Time) (int, error) {
	records, _ := f.ListByClassAndDate(ctx, classID, date)
	count := 0
	for _, record := range records {
		if record.Status == models.AttendanceStatusPresent {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	return nil, nil
}

type fakeClasses struct {
	class *models.ClassSession
}

func (f *fakeClasses) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	if f.class == nil || f.class.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.class, nil
}

func (f *fakeClasses) SetToken(ctx context.Context, id, token string, now time.Time) error {
	if f.class == nil || f.class.ID != id {
		return sql.ErrNoRows
	}
	f.class.CurrentToken = &token
	return nil
}

type fakeRoster struct{}

func (f *fakeRoster) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeRoster) ListAll(ctx context.Context) ([]models.Student, error) { return nil, nil }

func (f *fakeRoster) Count(ctx context.Context) (int, error) { return 0, nil }

type fakeCache struct{}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error { return nil }

func newTestAttendanceHandler(classID string) (*AttendanceHandler, *fakeClasses) {
	classes := &fakeClasses{class: &models.ClassSession{ID: classID, Subject: "Physics", Day: "Monday"}}
	svc := service.NewAttendanceService(
		&fakeLedger{records: make(map[string]*models.AttendanceRecord)},
		classes,
		&fakeRoster{},
		&fakeCache{},
		nil,
		nil,
		validator.New(),
		zap.NewNop(),
		service.AttendanceConfig{},
	)
	return NewAttendanceHandler(svc), classes
}

func testContext(t *testing.T, method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestAttendanceHandlerMintToken(t *testing.T) {
	handler, classes := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodPost, "/classes/c1/token", nil, &models.JWTClaims{UserID: "a1", Email: "admin@campus.edu", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.MintToken(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, classes.class.CurrentToken)

	var envelope struct {
		Data models.MintedToken `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "c1", envelope.Data.ClassID)
	assert.Equal(t, *classes.class.CurrentToken, envelope.Data.Token)
	assert.Equal(t, qrtoken.Validity, envelope.Data.ExpiresAt.Sub(envelope.Data.MintedAt))
}

func TestAttendanceHandlerMintTokenForbiddenForStudents(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodPost, "/classes/c1/token", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.MintToken(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAttendanceHandlerRedeemSupersededToken(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	mint, _ := testContext(t, http.MethodPost, "/classes/c1/token", nil, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	mint.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.MintToken(mint)

	// A well-formed token for the right class that is not the stored one.
	token := qrtoken.Mint("c1", time.Now().UTC())
	c, rec := testContext(t, http.MethodPost, "/attendance/redeem", service.RedeemRequest{Token: token, ClassID: "c1"}, &models.JWTClaims{UserID: "s1", Email: "s1@campus.edu", Role: models.RoleStudent})
	handler.Redeem(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.RedemptionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	// The freshly minted token above is not the stored one, so this must be
	// rejected, never accepted; the wire reason is wrong-class.
	assert.Equal(t, models.RedemptionRejected, envelope.Data.Outcome)
	assert.Equal(t, models.ReasonWrongClass, envelope.Data.Reason)
}

func TestAttendanceHandlerRedeemStoredToken(t *testing.T) {
	handler, classes := newTestAttendanceHandler("c1")

	mint, mintRec := testContext(t, http.MethodPost, "/classes/c1/token", nil, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	mint.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.MintToken(mint)
	require.Equal(t, http.StatusOK, mintRec.Code)
	require.NotNil(t, classes.class.CurrentToken)

	c, rec := testContext(t, http.MethodPost, "/attendance/redeem", service.RedeemRequest{Token: *classes.class.CurrentToken, ClassID: "c1"}, &models.JWTClaims{UserID: "s1", Email: "s1@campus.edu", Role: models.RoleStudent})
	handler.Redeem(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.RedemptionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.RedemptionAccepted, envelope.Data.Outcome)
	require.NotNil(t, envelope.Data.Record)
	assert.Equal(t, "s1", envelope.Data.Record.StudentID)
}

func TestAttendanceHandlerRedeemMissingBody(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodPost, "/attendance/redeem", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Redeem(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerStatusUnmarked(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodGet, "/attendance/status?class_id=c1", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data *models.AttendanceRecord `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Data)
	assert.Equal(t, false, envelope.Meta["marked"])
}

func TestAttendanceHandlerStatusBadDate(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodGet, "/attendance/status?class_id=c1&date=02-03-2026", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Status(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerSheetRejectsUnknownFormat(t *testing.T) {
	handler, _ := newTestAttendanceHandler("c1")

	c, rec := testContext(t, http.MethodGet, "/attendance/sheet?class_id=c1&format=xml", nil, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	handler.Sheet(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
