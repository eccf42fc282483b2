package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a uniqueness rule would be broken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when a login or session token cannot be accepted.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session has been logged out.
	ErrSessionRevoked = errors.New("application: session revoked")

	// ErrInvalidPayload is returned when a scanned code is malformed or does not match the expected format.
	ErrInvalidPayload = errors.New("application: invalid scan payload")
	// ErrOutOfZone is returned when the device position lies outside the configured zone.
	ErrOutOfZone = errors.New("application: position outside the authorized zone")
	// ErrPermissionDenied is returned when the client could not provide a position.
	ErrPermissionDenied = errors.New("application: location permission denied")
	// ErrAlreadyClosed is returned for a scan on a day that already has entry and exit.
	ErrAlreadyClosed = errors.New("application: attendance day already closed")
	// ErrAlreadyValidated is returned when a validated record would change.
	ErrAlreadyValidated = errors.New("application: record already validated")
	// ErrRecordOpen is returned when an operation needs both entry and exit.
	ErrRecordOpen = errors.New("application: record has no exit yet")
	// ErrUserHasRecords is returned when deleting a user that owns attendance records.
	ErrUserHasRecords = errors.New("application: user has attendance records")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
