package attendance

import (
	"errors"
	"time"

	"github.com/example/qr-pointage/internal/geofence"
)

var (
	// ErrExitBeforeEntry is returned when an exit time does not follow the entry time.
	ErrExitBeforeEntry = errors.New("attendance: exit time must be after entry time")
	// ErrExitWithoutEntry is returned when an exit time is set on a record without entry.
	ErrExitWithoutEntry = errors.New("attendance: exit time requires an entry time")
	// ErrValidatorWithoutValidation is returned when validatedBy is set on a non validated record.
	ErrValidatorWithoutValidation = errors.New("attendance: validator set on a record that is not validated")
	// ErrUnknownStatus is returned when a record carries a status outside the stored set.
	ErrUnknownStatus = errors.New("attendance: unknown record status")
)

// Record is the attendance entry of one user for one calendar day.
type Record struct {
	ID          string
	UserID      string
	Date        Date
	EntryTime   *time.Time
	ExitTime    *time.Time
	Status      Status
	Comment     *string
	ValidatedBy *string
	ValidatedAt *time.Time
	Location    *geofence.Point
	Site        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the user is checked in and has not left yet.
func (r Record) Open() bool {
	return r.EntryTime != nil && r.ExitTime == nil
}

// Closed reports whether both entry and exit have been recorded.
func (r Record) Closed() bool {
	return r.EntryTime != nil && r.ExitTime != nil
}

// Check verifies the record invariants.
func (r Record) Check() error {
	if !r.Status.Stored() {
		return ErrUnknownStatus
	}
	if r.ExitTime != nil {
		if r.EntryTime == nil {
			return ErrExitWithoutEntry
		}
		if !r.ExitTime.After(*r.EntryTime) {
			return ErrExitBeforeEntry
		}
	}
	if r.ValidatedBy != nil && r.Status != StatusValidated {
		return ErrValidatorWithoutValidation
	}
	return nil
}

// WorkedDuration returns the time between entry and exit when the day is closed.
func WorkedDuration(r Record) (time.Duration, bool) {
	if !r.Closed() {
		return 0, false
	}
	return r.ExitTime.Sub(*r.EntryTime), true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	clone := r
	clone.EntryTime = cloneTime(r.EntryTime)
	clone.ExitTime = cloneTime(r.ExitTime)
	clone.ValidatedAt = cloneTime(r.ValidatedAt)
	if r.Comment != nil {
		comment := *r.Comment
		clone.Comment = &comment
	}
	if r.ValidatedBy != nil {
		by := *r.ValidatedBy
		clone.ValidatedBy = &by
	}
	if r.Location != nil {
		loc := *r.Location
		clone.Location = &loc
	}
	return clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
