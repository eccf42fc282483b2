package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/persistence"
)

// UserStore serves both application.UserRepository and application.CredentialStore.
type UserStore struct {
	repo persistence.UserRepository
}

func NewUserStore(repo persistence.UserRepository) *UserStore {
	return &UserStore{repo: repo}
}

func (a *UserStore) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *UserStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserStore) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored hash when passwordHash is empty.
func (a *UserStore) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, err
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *UserStore) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *UserStore) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *UserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// RecordStore serves application.RecordRepository.
type RecordStore struct {
	repo persistence.RecordRepository
}

func NewRecordStore(repo persistence.RecordRepository) *RecordStore {
	return &RecordStore{repo: repo}
}

func (a *RecordStore) GetRecordForDay(ctx context.Context, userID string, date attendance.Date) (application.Record, error) {
	stored, err := a.repo.GetRecordForDay(ctx, userID, date.String())
	if err != nil {
		return application.Record{}, err
	}
	return toApplicationRecord(stored)
}

func (a *RecordStore) GetRecord(ctx context.Context, id string) (application.Record, error) {
	stored, err := a.repo.GetRecord(ctx, id)
	if err != nil {
		return application.Record{}, err
	}
	return toApplicationRecord(stored)
}

func (a *RecordStore) ListRecordsByUser(ctx context.Context, userID string, query application.RecordQuery) ([]application.Record, error) {
	filter := persistence.RecordFilter{}
	if query.Filter != application.RecordFilterAll {
		filter.Status = string(query.Filter)
	}
	if !query.Since.IsZero() {
		filter.Since = query.Since.String()
	}

	models, err := a.repo.ListRecordsByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	records := make([]application.Record, 0, len(models))
	for _, model := range models {
		record, err := toApplicationRecord(model)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (a *RecordStore) InsertRecord(ctx context.Context, record application.Record) (application.Record, error) {
	stored, err := a.repo.InsertRecord(ctx, toPersistenceRecord(record))
	if err != nil {
		return application.Record{}, err
	}
	return toApplicationRecord(stored)
}

func (a *RecordStore) UpdateRecord(ctx context.Context, id string, patch application.RecordPatch) (application.Record, error) {
	var status *string
	if patch.Status != nil {
		value := string(*patch.Status)
		status = &value
	}
	stored, err := a.repo.UpdateRecord(ctx, id, persistence.RecordPatch{
		ExitTime:    patch.ExitTime,
		Status:      status,
		Comment:     patch.Comment,
		ValidatedBy: patch.ValidatedBy,
		ValidatedAt: patch.ValidatedAt,
		UpdatedAt:   patch.UpdatedAt,
	})
	if err != nil {
		return application.Record{}, err
	}
	return toApplicationRecord(stored)
}

// SessionStore serves application.SessionRepository.
type SessionStore struct {
	repo persistence.SessionRepository
}

func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (a *SessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.Session(session))
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *SessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *SessionStore) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, persistence.Session(session))
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *SessionStore) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationUser(model persistence.User) application.User {
	role, err := application.ParseRole(model.Role)
	if err != nil {
		role = application.RoleEmployee
	}
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        role,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRecord(model persistence.Record) (application.Record, error) {
	date, err := attendance.ParseDate(model.Date)
	if err != nil {
		return application.Record{}, fmt.Errorf("storage: record %s: %w", model.ID, err)
	}
	record := application.Record{
		ID:          model.ID,
		UserID:      model.UserID,
		Date:        date,
		EntryTime:   model.EntryTime,
		ExitTime:    model.ExitTime,
		Status:      attendance.Status(model.Status),
		Comment:     model.Comment,
		ValidatedBy: model.ValidatedBy,
		ValidatedAt: model.ValidatedAt,
		Site:        model.Site,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.Latitude != nil && model.Longitude != nil {
		record.Location = &geofence.Point{Latitude: *model.Latitude, Longitude: *model.Longitude}
	}
	return record, nil
}

func toPersistenceRecord(record application.Record) persistence.Record {
	model := persistence.Record{
		ID:          record.ID,
		UserID:      record.UserID,
		Date:        record.Date.String(),
		EntryTime:   record.EntryTime,
		ExitTime:    record.ExitTime,
		Status:      string(record.Status),
		Comment:     record.Comment,
		ValidatedBy: record.ValidatedBy,
		ValidatedAt: record.ValidatedAt,
		Site:        record.Site,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if record.Location != nil {
		lat, lon := record.Location.Latitude, record.Location.Longitude
		model.Latitude = &lat
		model.Longitude = &lon
	}
	return model
}
