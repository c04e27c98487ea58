package models

import "time"

// Weekday is a timetable day. Sunday is intentionally absent; the timetable
// runs Monday through Saturday.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ValidWeekday reports whether day is a supported timetable day.
func ValidWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// ClassSession represents a timetabled class slot. CurrentToken holds the
// rotating attendance token; it is overwritten, never appended, on each mint.
type ClassSession struct {
	ID           string    `db:"id" json:"id"`
	Subject      string    `db:"subject" json:"subject"`
	Day          string    `db:"day" json:"day"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Room         string    `db:"room" json:"room"`
	Teacher      string    `db:"teacher" json:"teacher"`
	CurrentToken *string   `db:"current_token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSessionFilter scopes timetable listing.
type ClassSessionFilter struct {
	Day      string
	Page     int
	PageSize int
}

// MintedToken is the mint result handed back to the authority client.
type MintedToken struct {
	ClassID   string    `json:"class_id"`
	Token     string    `json:"token"`
	MintedAt  time.Time `json:"minted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
