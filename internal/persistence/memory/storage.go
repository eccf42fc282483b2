// Package memory keeps users, sessions and attendance records in process
// memory. It backs tests and the POINTAGE_STORAGE=memory mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/qr-pointage/internal/persistence"
)

// Storage implements the persistence repositories behind a single mutex.
type Storage struct {
	mu       sync.RWMutex
	users    map[string]persistence.User
	sessions map[string]persistence.Session // keyed by token
	records  map[string]persistence.Record
	days     map[dayKey]string // (user, date) -> record id
}

type dayKey struct {
	userID string
	date   string
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		sessions: make(map[string]persistence.Session),
		records:  make(map[string]persistence.Record),
		days:     make(map[dayKey]string),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	s.users[user.ID] = user
	return nil
}

// UpdateUser updates an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = current.CreatedAt
	if user.PasswordHash == "" {
		user.PasswordHash = current.PasswordHash
	}
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if err := ctx.Err(); err != nil {
		return persistence.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	if err := ctx.Err(); err != nil {
		return persistence.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := normalizeEmail(email)
	for _, user := range s.users {
		if user.Email == normalized {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// DeleteUser removes a user that owns no attendance records.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	for key := range s.days {
		if key.userID == id {
			return persistence.ErrForeignKeyViolation
		}
	}

	delete(s.users, id)
	for token, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	normalized := normalizeEmail(email)
	for existingID, user := range s.users {
		if existingID != id && user.Email == normalized {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- RecordRepository implementation ---

// GetRecordForDay returns the record of userID for date.
func (s *Storage) GetRecordForDay(ctx context.Context, userID, date string) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.days[dayKey{userID: userID, date: date}]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}
	return s.records[id].Clone(), nil
}

// GetRecord returns the record with the given id.
func (s *Storage) GetRecord(ctx context.Context, id string) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}
	return record.Clone(), nil
}

// ListRecordsByUser returns the user's records, most recent day first.
func (s *Storage) ListRecordsByUser(ctx context.Context, userID string, filter persistence.RecordFilter) ([]persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]persistence.Record, 0)
	for _, record := range s.records {
		if record.UserID == userID && filter.Matches(record) {
			records = append(records, record.Clone())
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	return records, nil
}

// InsertRecord stores a new record, rejecting a second record for the same day.
func (s *Storage) InsertRecord(ctx context.Context, record persistence.Record) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}
	if err := checkRecord(record); err != nil {
		return persistence.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[record.UserID]; !ok {
		return persistence.Record{}, persistence.ErrForeignKeyViolation
	}
	key := dayKey{userID: record.UserID, date: record.Date}
	if _, ok := s.days[key]; ok {
		return persistence.Record{}, persistence.ErrDuplicate
	}
	if _, ok := s.records[record.ID]; ok {
		return persistence.Record{}, persistence.ErrDuplicate
	}

	s.records[record.ID] = record.Clone()
	s.days[key] = record.ID
	return record.Clone(), nil
}

// UpdateRecord applies patch to the record with the given id.
func (s *Storage) UpdateRecord(ctx context.Context, id string, patch persistence.RecordPatch) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}

	updated := current.Apply(patch)
	if err := checkRecord(updated); err != nil {
		return persistence.Record{}, err
	}
	s.records[id] = updated
	return updated.Clone(), nil
}

// checkRecord mirrors the CHECK constraints of the SQL schema.
func checkRecord(record persistence.Record) error {
	if record.ID == "" || record.UserID == "" || record.Date == "" {
		return persistence.ErrConstraintViolation
	}
	switch record.Status {
	case persistence.StatusPresent, persistence.StatusCheckedOut, persistence.StatusPending,
		persistence.StatusModified, persistence.StatusValidated:
	default:
		return persistence.ErrConstraintViolation
	}
	if record.ExitTime != nil && (record.EntryTime == nil || !record.ExitTime.After(*record.EntryTime)) {
		return persistence.ErrConstraintViolation
	}
	if record.ValidatedBy != nil && record.Status != persistence.StatusValidated {
		return persistence.ErrConstraintViolation
	}
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	if _, ok := s.users[session.UserID]; !ok {
		return persistence.Session{}, persistence.ErrForeignKeyViolation
	}
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession replaces the token, expiry and revocation of a session by ID.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, current := range s.sessions {
		if current.ID != session.ID {
			continue
		}
		session.UserID = current.UserID
		session.CreatedAt = current.CreatedAt
		delete(s.sessions, token)
		s.sessions[session.Token] = cloneSession(session)
		return cloneSession(session), nil
	}
	return persistence.Session{}, persistence.ErrNotFound
}

// RevokeSession marks the session identified by token as revoked.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(token)
	session, ok := s.sessions[key]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	revoked := revokedAt.UTC()
	session.RevokedAt = &revoked
	session.UpdatedAt = revoked
	s.sessions[key] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	if session.RevokedAt != nil {
		revoked := *session.RevokedAt
		clone.RevokedAt = &revoked
	}
	return clone
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
