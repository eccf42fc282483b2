// Package persistencetest holds behaviour checks shared by every repository
// implementation.
package persistencetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/qr-pointage/internal/persistence"
)

// Store groups the repositories under test.
type Store interface {
	persistence.UserRepository
	persistence.RecordRepository
	persistence.SessionRepository
}

// Factory returns a fresh, empty store for each subtest.
type Factory func(t *testing.T) Store

var reference = time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, store Store, id, email string) persistence.User {
	t.Helper()
	user := persistence.User{
		ID:           id,
		Email:        email,
		DisplayName:  id,
		Role:         persistence.RoleEmployee,
		PasswordHash: "hash",
		CreatedAt:    reference,
		UpdatedAt:    reference,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func openRecord(id, userID, date string, entry time.Time) persistence.Record {
	lat, lon := 6.8467473, -5.2840243
	return persistence.Record{
		ID:        id,
		UserID:    userID,
		Date:      date,
		EntryTime: &entry,
		Status:    persistence.StatusPresent,
		Latitude:  &lat,
		Longitude: &lon,
		Site:      "Bureau principal",
		CreatedAt: entry,
		UpdatedAt: entry,
	}
}

func ptr[T any](value T) *T { return &value }

// RunUserRepositoryTests exercises persistence.UserRepository.
func RunUserRepositoryTests(t *testing.T, factory Factory) {
	t.Run("creates and reads users", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "Alice@Example.com")

		byID, err := store.GetUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if byID.Email != "alice@example.com" || byID.Role != persistence.RoleEmployee {
			t.Fatalf("unexpected user %#v", byID)
		}

		byEmail, err := store.GetUserByEmail(ctx, " ALICE@example.com ")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != "user-1" {
			t.Fatalf("expected user-1, got %s", byEmail.ID)
		}
	})

	t.Run("rejects duplicate emails", func(t *testing.T) {
		store := factory(t)
		seedUser(t, store, "user-1", "alice@example.com")

		err := store.CreateUser(context.Background(), persistence.User{
			ID: "user-2", Email: "ALICE@example.com", PasswordHash: "hash", Role: persistence.RoleEmployee,
			CreatedAt: reference, UpdatedAt: reference,
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("updates and lists users", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		user := seedUser(t, store, "user-1", "alice@example.com")
		seedUser(t, store, "user-2", "bob@example.com")

		user.Role = persistence.RoleManager
		user.DisplayName = "Alice K."
		user.UpdatedAt = reference.Add(time.Hour)
		if err := store.UpdateUser(ctx, user); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}

		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 2 || users[0].ID != "user-1" || users[0].Role != persistence.RoleManager {
			t.Fatalf("unexpected users %#v", users)
		}

		missing := user
		missing.ID = "ghost"
		if err := store.UpdateUser(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("refuses to delete users owning records", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")
		seedUser(t, store, "user-2", "bob@example.com")
		if _, err := store.InsertRecord(ctx, openRecord("rec-1", "user-1", "2025-06-12", reference)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}

		if err := store.DeleteUser(ctx, "user-1"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
		if err := store.DeleteUser(ctx, "user-2"); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}
		if _, err := store.GetUser(ctx, "user-2"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

// RunRecordRepositoryTests exercises persistence.RecordRepository.
func RunRecordRepositoryTests(t *testing.T, factory Factory) {
	t.Run("inserts and reads records by day and id", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")

		inserted, err := store.InsertRecord(ctx, openRecord("rec-1", "user-1", "2025-06-12", reference))
		if err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}

		byDay, err := store.GetRecordForDay(ctx, "user-1", "2025-06-12")
		if err != nil {
			t.Fatalf("GetRecordForDay failed: %v", err)
		}
		if byDay.ID != inserted.ID || byDay.EntryTime == nil || !byDay.EntryTime.Equal(reference) {
			t.Fatalf("unexpected record %#v", byDay)
		}
		if byDay.Latitude == nil || *byDay.Latitude != 6.8467473 || byDay.Site != "Bureau principal" {
			t.Fatalf("expected location to round trip, got %#v", byDay)
		}
		if byDay.ExitTime != nil || byDay.ValidatedBy != nil {
			t.Fatalf("expected open record, got %#v", byDay)
		}

		if _, err := store.GetRecord(ctx, "rec-1"); err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if _, err := store.GetRecordForDay(ctx, "user-1", "2025-06-13"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for another day, got %v", err)
		}
		if _, err := store.GetRecord(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
		}
	})

	t.Run("keeps one record per user and day", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")
		seedUser(t, store, "user-2", "bob@example.com")

		if _, err := store.InsertRecord(ctx, openRecord("rec-1", "user-1", "2025-06-12", reference)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
		_, err := store.InsertRecord(ctx, openRecord("rec-2", "user-1", "2025-06-12", reference.Add(time.Minute)))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if _, err := store.InsertRecord(ctx, openRecord("rec-3", "user-2", "2025-06-12", reference)); err != nil {
			t.Fatalf("expected other user to scan the same day, got %v", err)
		}
	})

	t.Run("concurrent inserts for the same day leave one record", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")

		const attempts = 8
		var wg sync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := "rec-" + string(rune('a'+i))
				_, err := store.InsertRecord(ctx, openRecord(id, "user-1", "2025-06-12", reference))
				results <- err
			}(i)
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, persistence.ErrDuplicate):
				t.Fatalf("unexpected insert error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one successful insert, got %d", succeeded)
		}
	})

	t.Run("updates records with patches", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")
		if _, err := store.InsertRecord(ctx, openRecord("rec-1", "user-1", "2025-06-12", reference)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}

		exit := reference.Add(8*time.Hour + 30*time.Minute)
		updated, err := store.UpdateRecord(ctx, "rec-1", persistence.RecordPatch{
			ExitTime:  &exit,
			Status:    ptr(persistence.StatusCheckedOut),
			UpdatedAt: exit,
		})
		if err != nil {
			t.Fatalf("UpdateRecord failed: %v", err)
		}
		if updated.ExitTime == nil || !updated.ExitTime.Equal(exit) || updated.Status != persistence.StatusCheckedOut {
			t.Fatalf("unexpected updated record %#v", updated)
		}

		validatedAt := exit.Add(time.Hour)
		updated, err = store.UpdateRecord(ctx, "rec-1", persistence.RecordPatch{
			Status:      ptr(persistence.StatusValidated),
			Comment:     ptr("ok"),
			ValidatedBy: ptr("manager-1"),
			ValidatedAt: &validatedAt,
			UpdatedAt:   validatedAt,
		})
		if err != nil {
			t.Fatalf("UpdateRecord failed: %v", err)
		}
		if updated.ValidatedBy == nil || *updated.ValidatedBy != "manager-1" || updated.Comment == nil || *updated.Comment != "ok" {
			t.Fatalf("unexpected validated record %#v", updated)
		}
		if updated.EntryTime == nil || !updated.EntryTime.Equal(reference) {
			t.Fatalf("expected entry time to be preserved, got %v", updated.EntryTime)
		}

		if _, err := store.UpdateRecord(ctx, "missing", persistence.RecordPatch{Comment: ptr("x")}); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("enforces record constraints", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")
		if _, err := store.InsertRecord(ctx, openRecord("rec-1", "user-1", "2025-06-12", reference)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}

		early := reference.Add(-time.Minute)
		_, err := store.UpdateRecord(ctx, "rec-1", persistence.RecordPatch{ExitTime: &early})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation for exit before entry, got %v", err)
		}

		_, err = store.UpdateRecord(ctx, "rec-1", persistence.RecordPatch{ValidatedBy: ptr("manager-1")})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation for validator without validation, got %v", err)
		}

		record, err := store.GetRecord(ctx, "rec-1")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if record.ExitTime != nil || record.ValidatedBy != nil {
			t.Fatalf("expected rejected patches to leave the record untouched, got %#v", record)
		}
	})

	t.Run("lists records by user with filters", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")
		seedUser(t, store, "user-2", "bob@example.com")

		for i, date := range []string{"2025-06-10", "2025-06-12", "2025-06-11"} {
			entry := reference.AddDate(0, 0, i-2)
			if _, err := store.InsertRecord(ctx, openRecord("rec-"+date, "user-1", date, entry)); err != nil {
				t.Fatalf("InsertRecord failed: %v", err)
			}
		}
		if _, err := store.InsertRecord(ctx, openRecord("other", "user-2", "2025-06-12", reference)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}

		exit := reference.AddDate(0, 0, -2).Add(8 * time.Hour)
		if _, err := store.UpdateRecord(ctx, "rec-2025-06-10", persistence.RecordPatch{
			ExitTime:    &exit,
			Status:      ptr(persistence.StatusValidated),
			ValidatedBy: ptr("manager-1"),
			ValidatedAt: &exit,
		}); err != nil {
			t.Fatalf("UpdateRecord failed: %v", err)
		}

		all, err := store.ListRecordsByUser(ctx, "user-1", persistence.RecordFilter{})
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(all) != 3 || all[0].Date != "2025-06-12" || all[2].Date != "2025-06-10" {
			t.Fatalf("expected three records in descending date order, got %#v", all)
		}

		pending, err := store.ListRecordsByUser(ctx, "user-1", persistence.RecordFilter{Status: persistence.RecordFilterPending})
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("expected 2 non-validated records, got %d", len(pending))
		}

		validated, err := store.ListRecordsByUser(ctx, "user-1", persistence.RecordFilter{Status: persistence.RecordFilterValidated})
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(validated) != 1 || validated[0].Date != "2025-06-10" {
			t.Fatalf("expected the validated record only, got %#v", validated)
		}

		recent, err := store.ListRecordsByUser(ctx, "user-1", persistence.RecordFilter{Since: "2025-06-11"})
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("expected 2 records since 2025-06-11, got %d", len(recent))
		}

		none, err := store.ListRecordsByUser(ctx, "nobody", persistence.RecordFilter{})
		if err != nil {
			t.Fatalf("ListRecordsByUser failed: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no records, got %d", len(none))
		}
	})
}

// RunSessionRepositoryTests exercises persistence.SessionRepository.
func RunSessionRepositoryTests(t *testing.T, factory Factory) {
	newSession := func(id, token string, expires time.Time) persistence.Session {
		return persistence.Session{
			ID:        id,
			UserID:    "user-1",
			Token:     token,
			ExpiresAt: expires,
			CreatedAt: reference,
			UpdatedAt: reference,
		}
	}

	t.Run("creates, rotates and revokes sessions", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")

		if _, err := store.CreateSession(ctx, newSession("session-1", "token-1", reference.Add(time.Hour))); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		fetched, err := store.GetSession(ctx, "token-1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if fetched.UserID != "user-1" || fetched.RevokedAt != nil {
			t.Fatalf("unexpected session %#v", fetched)
		}

		rotated := fetched
		rotated.Token = "token-2"
		rotated.ExpiresAt = reference.Add(2 * time.Hour)
		if _, err := store.UpdateSession(ctx, rotated); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		if _, err := store.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected old token to be gone, got %v", err)
		}

		revoked, err := store.RevokeSession(ctx, "token-2", reference.Add(time.Minute))
		if err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		if revoked.RevokedAt == nil {
			t.Fatalf("expected revocation timestamp")
		}
		if _, err := store.RevokeSession(ctx, "unknown", reference); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deletes expired sessions", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		seedUser(t, store, "user-1", "alice@example.com")

		if _, err := store.CreateSession(ctx, newSession("old", "old-token", reference.Add(-time.Minute))); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if _, err := store.CreateSession(ctx, newSession("new", "new-token", reference.Add(time.Hour))); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		if err := store.DeleteExpiredSessions(ctx, reference); err != nil {
			t.Fatalf("DeleteExpiredSessions failed: %v", err)
		}
		if _, err := store.GetSession(ctx, "old-token"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected expired session to be removed, got %v", err)
		}
		if _, err := store.GetSession(ctx, "new-token"); err != nil {
			t.Fatalf("expected live session to remain, got %v", err)
		}
	})
}
