package models

import "time"

// Student is a directory entry. The directory is the roster collaborator for
// attendance stats; attendance itself treats it as read-only reference data.
type Student struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	Department string    `db:"department" json:"department"`
	Year       int       `db:"year" json:"year"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter scopes directory listing.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// StudentImportConflict reports a directory row skipped during bulk import.
type StudentImportConflict struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}
