package persistence

import "time"

// Role values stored on users.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
)

// Status codes stored on attendance records.
const (
	StatusPresent    = "present"
	StatusCheckedOut = "checked_out"
	StatusPending    = "pending"
	StatusModified   = "modified"
	StatusValidated  = "validated"
)

// User represents an employee account allowed to scan.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Record is the stored attendance entry for one user and one calendar day.
type Record struct {
	ID          string
	UserID      string
	Date        string // YYYY-MM-DD in the business time zone
	EntryTime   *time.Time
	ExitTime    *time.Time
	Status      string
	Comment     *string
	ValidatedBy *string
	ValidatedAt *time.Time
	Latitude    *float64
	Longitude   *float64
	Site        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecordPatch lists the mutable fields of a record. Nil fields are left untouched.
type RecordPatch struct {
	ExitTime    *time.Time
	Status      *string
	Comment     *string
	ValidatedBy *string
	ValidatedAt *time.Time
	UpdatedAt   time.Time
}

// Record filter values.
const (
	RecordFilterAll       = "all"
	RecordFilterPending   = "pending"
	RecordFilterValidated = "validated"
)

// RecordFilter narrows record listings.
type RecordFilter struct {
	// Status is one of the RecordFilter* values; empty means all.
	Status string
	// Since keeps records dated on or after this YYYY-MM-DD day when set.
	Since string
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
