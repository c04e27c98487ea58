package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// AttendanceRecord is one attendance outcome, unique per
// (class_id, student_id, date). MarkedBy is set only for manual overrides;
// self-service redemptions leave it empty.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	StudentEmail string           `db:"student_email" json:"student_email"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	MarkedBy     *string          `db:"marked_by" json:"marked_by,omitempty"`
	RecordedAt   time.Time        `db:"recorded_at" json:"recorded_at"`
}

// RedemptionOutcome classifies the result of a scan redemption.
type RedemptionOutcome string

const (
	RedemptionAccepted RedemptionOutcome = "accepted"
	RedemptionRejected RedemptionOutcome = "rejected"
)

// RejectionReason explains a rejected redemption. All reasons are recoverable
// client-side notices, not faults.
type RejectionReason string

const (
	ReasonMalformed     RejectionReason = "malformed"
	ReasonExpired       RejectionReason = "expired"
	ReasonWrongClass    RejectionReason = "wrong-class"
	ReasonStaleToken    RejectionReason = "stale-token" // metrics label; wire responses report wrong-class
	ReasonAlreadyMarked RejectionReason = "already-marked"
)

// RedemptionResult is the synchronous outcome of a redeem attempt. Replayed
// marks a no-op repeat delivery from an already-consumed scan session.
type RedemptionResult struct {
	Outcome  RedemptionOutcome `json:"outcome"`
	Reason   RejectionReason   `json:"reason,omitempty"`
	Record   *AttendanceRecord `json:"record,omitempty"`
	Replayed bool              `json:"replayed,omitempty"`
}

// Accepted reports whether the redemption produced a present record.
func (r *RedemptionResult) Accepted() bool {
	return r != nil && r.Outcome == RedemptionAccepted
}

// RosterStats summarises one class/day against the directory roster.
type RosterStats struct {
	ClassID    string    `json:"class_id"`
	Date       time.Time `json:"date"`
	Present    int       `json:"present"`
	RosterSize int       `json:"roster_size"`
}

// ClassSheetRow is one roster line of the authority audit view. Status is
// empty when the student has no record for the day.
type ClassSheetRow struct {
	StudentID    string           `json:"student_id"`
	StudentEmail string           `json:"student_email"`
	StudentName  string           `json:"student_name"`
	Status       AttendanceStatus `json:"status,omitempty"`
	MarkedBy     *string          `json:"marked_by,omitempty"`
	RecordedAt   *time.Time       `json:"recorded_at,omitempty"`
}

// AttendanceHistoryRow captures one day of a student's history.
type AttendanceHistoryRow struct {
	ClassID string           `db:"class_id" json:"class_id"`
	Subject string           `db:"subject" json:"subject"`
	Date    time.Time        `db:"date" json:"date"`
	Status  AttendanceStatus `db:"status" json:"status"`
}

// DateOnly truncates t to its calendar day in UTC; attendance keys compare
// days, not instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
