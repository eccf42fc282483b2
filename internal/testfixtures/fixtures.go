package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/persistence"
)

var (
	userCounter    uint64
	recordCounter  uint64
	sessionCounter uint64
)

// Monday 2 March 2026, 08:00 at the Abidjan office (UTC+0).
var referenceTime = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// OfficePoint is the centre of the default authorized zone.
var OfficePoint = geofence.Point{Latitude: 6.8467473, Longitude: -5.2840243}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user that can be materialised for
// application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         application.Role
	Password     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic employee fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@tevia.ci", id),
		DisplayName:  fmt.Sprintf("Employé %03d", idx),
		Role:         application.RoleEmployee,
		Password:     fmt.Sprintf("password-%03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// AsManager gives the fixture the manager role.
func AsManager() UserOption {
	return func(f *UserFixture) {
		f.Role = application.RoleManager
	}
}

// WithUserPassword sets the clear password and clears the placeholder hash.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) {
		f.Password = password
		f.PasswordHash = ""
	}
}

// WithUserPasswordHash sets the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns the principal a session for this user would carry.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{
		UserID:      f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		Password:    f.Password,
	}
}

// ---------------------------- Record fixtures ----------------------------

// RecordFixture represents a deterministic attendance record. It starts as
// an open record: entry at ReferenceTime, no exit.
type RecordFixture struct {
	ID          string
	UserID      string
	Date        attendance.Date
	EntryTime   *time.Time
	ExitTime    *time.Time
	Status      attendance.Status
	Comment     *string
	ValidatedBy *string
	ValidatedAt *time.Time
	Location    *geofence.Point
	Site        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecordOption configures the generated record fixture.
type RecordOption func(*RecordFixture)

// NewRecordFixture returns an open record for userID on the reference day.
func NewRecordFixture(userID string, opts ...RecordOption) RecordFixture {
	idx := atomic.AddUint64(&recordCounter, 1)
	entry := referenceTime
	point := OfficePoint
	fixture := RecordFixture{
		ID:        fmt.Sprintf("record-%03d", idx),
		UserID:    userID,
		Date:      attendance.DateOf(entry, time.UTC),
		EntryTime: &entry,
		Status:    attendance.StatusPresent,
		Location:  &point,
		Site:      "Bureau principal",
		CreatedAt: entry,
		UpdatedAt: entry,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRecordID overrides the generated record ID.
func WithRecordID(id string) RecordOption {
	return func(f *RecordFixture) {
		f.ID = id
	}
}

// OnDay moves the record to the given day, keeping the entry hour.
func OnDay(date attendance.Date) RecordOption {
	return func(f *RecordFixture) {
		shift := date.Start(time.UTC).Sub(f.Date.Start(time.UTC))
		f.Date = date
		if f.EntryTime != nil {
			entry := f.EntryTime.Add(shift)
			f.EntryTime = &entry
			f.CreatedAt = entry
			f.UpdatedAt = entry
		}
		if f.ExitTime != nil {
			exit := f.ExitTime.Add(shift)
			f.ExitTime = &exit
			f.UpdatedAt = exit
		}
	}
}

// ClosedAfter records an exit d after the entry.
func ClosedAfter(d time.Duration) RecordOption {
	return func(f *RecordFixture) {
		if f.EntryTime == nil {
			return
		}
		exit := f.EntryTime.Add(d)
		f.ExitTime = &exit
		f.Status = attendance.StatusCheckedOut
		f.UpdatedAt = exit
	}
}

// WithRecordStatus overrides the stored status.
func WithRecordStatus(status attendance.Status) RecordOption {
	return func(f *RecordFixture) {
		f.Status = status
	}
}

// WithRecordComment attaches a comment.
func WithRecordComment(comment string) RecordOption {
	return func(f *RecordFixture) {
		f.Comment = &comment
	}
}

// ValidatedBy marks the record validated by managerID at t.
func ValidatedBy(managerID string, t time.Time) RecordOption {
	return func(f *RecordFixture) {
		f.Status = attendance.StatusValidated
		f.ValidatedBy = &managerID
		f.ValidatedAt = &t
		f.UpdatedAt = t
	}
}

// WithoutRecordLocation drops the scan position.
func WithoutRecordLocation() RecordOption {
	return func(f *RecordFixture) {
		f.Location = nil
	}
}

// Application returns the fixture as an application.Record value.
func (f RecordFixture) Application() application.Record {
	var location *geofence.Point
	if f.Location != nil {
		point := *f.Location
		location = &point
	}
	return application.Record{
		ID:          f.ID,
		UserID:      f.UserID,
		Date:        f.Date,
		EntryTime:   copyTimePtr(f.EntryTime),
		ExitTime:    copyTimePtr(f.ExitTime),
		Status:      f.Status,
		Comment:     copyStringPtr(f.Comment),
		ValidatedBy: copyStringPtr(f.ValidatedBy),
		ValidatedAt: copyTimePtr(f.ValidatedAt),
		Location:    location,
		Site:        f.Site,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Record value.
func (f RecordFixture) Persistence() persistence.Record {
	record := persistence.Record{
		ID:          f.ID,
		UserID:      f.UserID,
		Date:        f.Date.String(),
		EntryTime:   copyTimePtr(f.EntryTime),
		ExitTime:    copyTimePtr(f.ExitTime),
		Status:      string(f.Status),
		Comment:     copyStringPtr(f.Comment),
		ValidatedBy: copyStringPtr(f.ValidatedBy),
		ValidatedAt: copyTimePtr(f.ValidatedAt),
		Site:        f.Site,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.Location != nil {
		lat, lon := f.Location.Latitude, f.Location.Longitude
		record.Latitude = &lat
		record.Longitude = &lon
	}
	return record
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session for userID valid for one working day.
func NewSessionFixture(userID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    userID,
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the revocation timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
		f.UpdatedAt = t
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
