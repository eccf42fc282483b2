package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
)

// Role distinguishes employees from managers allowed to validate records.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// ParseRole converts a stored or caller supplied value into a Role.
func ParseRole(value string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleEmployee, RoleManager:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	Email       string
	DisplayName string
	Role        Role
}

// IsManager reports whether the principal carries the manager role.
func (p Principal) IsManager() bool {
	return p.Role == RoleManager
}

// User represents an employee account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	// Password is required on creation and optional on update.
	Password string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// BootstrapManager describes the manager account seeded at startup.
type BootstrapManager struct {
	Email       string
	Password    string
	DisplayName string
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}

// Record is the attendance record handled by the services.
type Record = attendance.Record

// RecordPatch lists the record fields a service may change. Nil fields are left untouched.
type RecordPatch struct {
	ExitTime    *time.Time
	Status      *attendance.Status
	Comment     *string
	ValidatedBy *string
	ValidatedAt *time.Time
	UpdatedAt   time.Time
}

// RecordFilter narrows record listings by validation state.
type RecordFilter string

const (
	RecordFilterAll       RecordFilter = "all"
	RecordFilterPending   RecordFilter = "pending"
	RecordFilterValidated RecordFilter = "validated"
)

// ParseRecordFilter converts a query value into a RecordFilter; empty means all.
func ParseRecordFilter(value string) (RecordFilter, error) {
	switch filter := RecordFilter(strings.ToLower(strings.TrimSpace(value))); filter {
	case "":
		return RecordFilterAll, nil
	case RecordFilterAll, RecordFilterPending, RecordFilterValidated:
		return filter, nil
	}
	return "", fmt.Errorf("unknown record filter %q", value)
}

// RecordQuery is the repository level listing filter.
type RecordQuery struct {
	Filter RecordFilter
	// Since keeps records dated on or after this day when not zero.
	Since attendance.Date
}

// ScanParams wraps a decoded QR string and the device position.
type ScanParams struct {
	Principal Principal
	Payload   string
	Location  *geofence.Point
}

// ScanResult reports the record state after a scan.
type ScanResult struct {
	Record     Record
	Transition attendance.Transition
	CheckedIn  bool
}

// TodayStatus summarises the principal's attendance for the current day.
type TodayStatus struct {
	Date      attendance.Date
	Status    attendance.Status
	CheckedIn bool
	Record    *Record
}

// ListRecordsParams wraps the data required to list records.
type ListRecordsParams struct {
	Principal Principal
	// UserID defaults to the principal; other users require the manager role.
	UserID string
	Filter RecordFilter
	Since  attendance.Date
}

// UpdateCommentParams wraps the data required to comment a record.
type UpdateCommentParams struct {
	Principal Principal
	RecordID  string
	Comment   string
}

// ZoneCheck is the outcome of a geofence pre-check.
type ZoneCheck struct {
	Enabled bool
	Inside  bool
	Zone    geofence.Zone
}
