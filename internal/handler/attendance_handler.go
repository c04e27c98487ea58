package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bennet-campus/campus-api/internal/models"
	"github.com/bennet-campus/campus-api/internal/service"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
	"github.com/bennet-campus/campus-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance flow.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// MintToken godoc
// @Summary Mint an attendance token
// @Description Rotates the class's QR token; the previous token is superseded immediately
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/token [post]
func (h *AttendanceHandler) MintToken(c *gin.Context) {
	minted, err := h.service.MintToken(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, minted, nil)
}

// TokenQR godoc
// @Summary Render the current token as a QR PNG
// @Tags Attendance
// @Produce png
// @Param id path string true "Class ID"
// @Success 200 {string} binary "PNG image"
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/token/qr [get]
func (h *AttendanceHandler) TokenQR(c *gin.Context) {
	png, err := h.service.TokenQR(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// OpenScanSession godoc
// @Summary Open a scanner session
// @Description One redemption outcome is processed per session; later decodes replay it
// @Tags Attendance
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /attendance/scan-sessions [post]
func (h *AttendanceHandler) OpenScanSession(c *gin.Context) {
	id, err := h.service.OpenScanSession(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"scan_session_id": id})
}

// Redeem godoc
// @Summary Redeem a scanned token
// @Description Validates the decoded QR payload and marks the student present on success
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RedeemRequest true "Redeem payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /attendance/redeem [post]
func (h *AttendanceHandler) Redeem(c *gin.Context) {
	var req service.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid redeem payload"))
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Override godoc
// @Summary Manually set attendance
// @Description Authority upsert for one (class, student, today) key; last write wins
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.OverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [put]
func (h *AttendanceHandler) Override(c *gin.Context) {
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}

	record, err := h.service.SetAttendance(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Status godoc
// @Summary Attendance status for one student and day
// @Description Students see their own record; the authority may name any student
// @Tags Attendance
// @Produce json
// @Param class_id query string true "Class ID"
// @Param student_id query string false "Student ID (authority only)"
// @Param date query string false "Day (YYYY-MM-DD, default today)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/status [get]
func (h *AttendanceHandler) Status(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	record, err := h.service.StatusFor(c.Request.Context(), c.Query("class_id"), c.Query("student_id"), date, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil, map[string]interface{}{"marked": record != nil})
}

// Stats godoc
// @Summary Present count against the roster
// @Tags Attendance
// @Produce json
// @Param class_id query string true "Class ID"
// @Param date query string false "Day (YYYY-MM-DD, default today)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.service.StatsFor(c.Request.Context(), c.Query("class_id"), date, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Sheet godoc
// @Summary Class attendance sheet
// @Description Roster-joined audit view; format=json|csv|pdf
// @Tags Attendance
// @Produce json
// @Param class_id query string true "Class ID"
// @Param date query string false "Day (YYYY-MM-DD, default today)"
// @Param format query string false "json (default), csv, or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/sheet [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	classID := c.Query("class_id")
	format := c.DefaultQuery("format", "json")

	if format == "json" {
		rows, err := h.service.ClassSheet(c.Request.Context(), classID, date, claimsFromContext(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, rows, nil)
		return
	}

	payload, contentType, err := h.service.ExportSheet(c.Request.Context(), classID, date, format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attendance-%s.%s", models.DateOnly(date).Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// History godoc
// @Summary Day-by-day attendance history
// @Description Students see their own history; the authority may name any student
// @Tags Attendance
// @Produce json
// @Param student_id query string false "Student ID (authority only)"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
			return
		}
		to = &parsed
	}

	rows, err := h.service.StudentHistory(c.Request.Context(), c.Query("student_id"), from, to, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

func queryDate(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD")
	}
	return parsed, nil
}
