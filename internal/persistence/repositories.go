package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RecordRepository stores attendance records, at most one per user and day.
type RecordRepository interface {
	// GetRecordForDay returns ErrNotFound when the user has no record that day.
	GetRecordForDay(ctx context.Context, userID, date string) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	// ListRecordsByUser returns records ordered by date, most recent first.
	ListRecordsByUser(ctx context.Context, userID string, filter RecordFilter) ([]Record, error)
	// InsertRecord returns ErrDuplicate when (UserID, Date) already exists.
	InsertRecord(ctx context.Context, record Record) (Record, error)
	// UpdateRecord applies patch and returns ErrNotFound when id is unknown.
	UpdateRecord(ctx context.Context, id string, patch RecordPatch) (Record, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
