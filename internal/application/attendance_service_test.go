package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/persistence"
	"github.com/example/qr-pointage/internal/scan"
)

// recordStoreStub is an in-memory RecordRepository keyed by record ID.
type recordStoreStub struct {
	mu      sync.Mutex
	records map[string]Record

	listCalls int
	insertErr error
	updateErr error
	getErr    error
}

func newRecordStoreStub(records ...Record) *recordStoreStub {
	stub := &recordStoreStub{records: make(map[string]Record)}
	for _, record := range records {
		stub.records[record.ID] = record.Clone()
	}
	return stub
}

func (s *recordStoreStub) GetRecordForDay(ctx context.Context, userID string, date attendance.Date) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Record{}, s.getErr
	}
	for _, record := range s.records {
		if record.UserID == userID && record.Date == date {
			return record.Clone(), nil
		}
	}
	return Record{}, persistence.ErrNotFound
}

func (s *recordStoreStub) GetRecord(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return Record{}, persistence.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *recordStoreStub) ListRecordsByUser(ctx context.Context, userID string, query RecordQuery) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]Record, 0)
	for _, record := range s.records {
		if record.UserID != userID {
			continue
		}
		if !query.Since.IsZero() && record.Date.Before(query.Since) {
			continue
		}
		switch query.Filter {
		case RecordFilterPending:
			if record.Status == attendance.StatusValidated {
				continue
			}
		case RecordFilterValidated:
			if record.Status != attendance.StatusValidated {
				continue
			}
		}
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *recordStoreStub) InsertRecord(ctx context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return Record{}, s.insertErr
	}
	for _, existing := range s.records {
		if existing.UserID == record.UserID && existing.Date == record.Date {
			return Record{}, fmt.Errorf("insert: %w", persistence.ErrDuplicate)
		}
	}
	s.records[record.ID] = record.Clone()
	return record.Clone(), nil
}

func (s *recordStoreStub) UpdateRecord(ctx context.Context, id string, patch RecordPatch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return Record{}, s.updateErr
	}
	record, ok := s.records[id]
	if !ok {
		return Record{}, persistence.ErrNotFound
	}
	if patch.ExitTime != nil {
		exit := *patch.ExitTime
		record.ExitTime = &exit
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.Comment != nil {
		comment := *patch.Comment
		record.Comment = &comment
	}
	if patch.ValidatedBy != nil {
		validator := *patch.ValidatedBy
		record.ValidatedBy = &validator
	}
	if patch.ValidatedAt != nil {
		at := *patch.ValidatedAt
		record.ValidatedAt = &at
	}
	if !patch.UpdatedAt.IsZero() {
		record.UpdatedAt = patch.UpdatedAt
	}
	if err := record.Check(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	s.records[id] = record
	return record.Clone(), nil
}

func (s *recordStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type roleResolverStub map[string]Role

func (r roleResolverStub) RoleOf(ctx context.Context, userID string) (Role, error) {
	role, ok := r[userID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

var (
	siteCenter = geofence.Point{Latitude: 6.8467473, Longitude: -5.2840243}
	onSite     = &geofence.Point{Latitude: 6.8467473, Longitude: -5.2840243}
	offSite    = &geofence.Point{Latitude: 6.85, Longitude: -5.2840243}
	scanDay    = attendance.Date{Year: 2025, Month: time.June, Day: 12}
	testRoles  = roleResolverStub{"user-1": RoleEmployee, "user-2": RoleEmployee, "manager-1": RoleManager}
)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func newAttendanceFixture(t *testing.T, mode scan.Mode, records ...Record) (*AttendanceService, *recordStoreStub, *testClock) {
	t.Helper()
	clock := &testClock{current: time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)}
	decoder, err := scan.NewDecoder(scan.Options{Mode: mode, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	store := newRecordStoreStub(records...)
	svc := NewAttendanceService(store, testRoles, decoder, sequence("rec"), clock.Now, AttendanceSettings{
		Location:        time.UTC,
		Zone:            geofence.NewZone(siteCenter, geofence.DefaultTolerance),
		GeofenceEnabled: true,
		StoreTimeout:    time.Second,
		HistoryDays:     7,
		CacheTTL:        time.Minute,
	})
	return svc, store, clock
}

func closedRecord(id, userID string, date attendance.Date, status attendance.Status) Record {
	entry := time.Date(date.Year, date.Month, date.Day, 8, 0, 0, 0, time.UTC)
	exit := entry.Add(8 * time.Hour)
	return Record{
		ID:        id,
		UserID:    userID,
		Date:      date,
		EntryTime: &entry,
		ExitTime:  &exit,
		Status:    status,
		CreatedAt: entry,
		UpdatedAt: exit,
	}
}

func scanOnSite(t *testing.T, svc *AttendanceService, payload string) (ScanResult, error) {
	t.Helper()
	return svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: payload, Location: onSite})
}

func TestAttendanceService_Scan(t *testing.T) {
	t.Parallel()

	t.Run("first scan opens the day and second closes it", func(t *testing.T) {
		t.Parallel()
		svc, store, clock := newAttendanceFixture(t, scan.ModeMarker)

		first, err := scanOnSite(t, svc, scan.DefaultMarker)
		if err != nil {
			t.Fatalf("first scan failed: %v", err)
		}
		if first.Transition != attendance.TransitionEntry || !first.CheckedIn {
			t.Fatalf("expected entry transition, got %#v", first)
		}
		rec := first.Record
		if rec.Status != attendance.StatusPresent || rec.EntryTime == nil || rec.ExitTime != nil {
			t.Fatalf("expected open present record, got %#v", rec)
		}
		if rec.Date != scanDay || rec.Site != scan.DefaultSite || rec.Location == nil {
			t.Fatalf("expected date, site and location to be recorded, got %#v", rec)
		}

		clock.Advance(8*time.Hour + 30*time.Minute)
		second, err := scanOnSite(t, svc, scan.DefaultMarker)
		if err != nil {
			t.Fatalf("second scan failed: %v", err)
		}
		if second.Transition != attendance.TransitionExit || second.CheckedIn {
			t.Fatalf("expected exit transition, got %#v", second)
		}
		if second.Record.Status != attendance.StatusCheckedOut || second.Record.ExitTime == nil {
			t.Fatalf("expected checked out record, got %#v", second.Record)
		}
		if !second.Record.ExitTime.After(*second.Record.EntryTime) {
			t.Fatalf("expected exit after entry")
		}
		if second.Record.ID != rec.ID || store.count() != 1 {
			t.Fatalf("expected the same single record, got %d records", store.count())
		}
	})

	t.Run("third scan on a closed day is rejected without mutation", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker, closedRecord("rec-0", "user-1", scanDay, attendance.StatusCheckedOut))

		_, err := scanOnSite(t, svc, scan.DefaultMarker)
		if !errors.Is(err, ErrAlreadyClosed) {
			t.Fatalf("expected ErrAlreadyClosed, got %v", err)
		}
		record, _ := store.GetRecord(context.Background(), "rec-0")
		if record.Status != attendance.StatusCheckedOut {
			t.Fatalf("expected record untouched, got %s", record.Status)
		}
	})

	t.Run("garbage payloads leave the store unchanged", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker)

		_, err := scanOnSite(t, svc, "garbage")
		if !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
		if store.count() != 0 {
			t.Fatalf("expected no records, got %d", store.count())
		}
	})

	t.Run("enforces the geofence", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker)

		_, err := svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker, Location: offSite})
		if !errors.Is(err, ErrOutOfZone) {
			t.Fatalf("expected ErrOutOfZone, got %v", err)
		}
		_, err = svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		_, err = svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker, Location: &geofence.Point{Latitude: 91}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for invalid coordinates, got %v", err)
		}
		if store.count() != 0 {
			t.Fatalf("expected no records, got %d", store.count())
		}
	})

	t.Run("typed payloads must match the day state", func(t *testing.T) {
		t.Parallel()
		svc, store, clock := newAttendanceFixture(t, scan.ModeStructured)

		if _, err := scanOnSite(t, svc, `{"type":"exit"}`); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for exit without entry, got %v", err)
		}
		if _, err := scanOnSite(t, svc, `{"type":"entry","location":"Annexe"}`); err != nil {
			t.Fatalf("entry scan failed: %v", err)
		}
		if _, err := scanOnSite(t, svc, `{"type":"entry"}`); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists for a second entry, got %v", err)
		}
		clock.Advance(time.Hour)
		result, err := scanOnSite(t, svc, `{"type":"exit"}`)
		if err != nil {
			t.Fatalf("exit scan failed: %v", err)
		}
		if result.Record.Site != "Annexe" || store.count() != 1 {
			t.Fatalf("unexpected result %#v", result.Record)
		}
	})

	t.Run("maps lost insert races to ErrAlreadyExists", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker)
		store.insertErr = fmt.Errorf("insert: %w", persistence.ErrDuplicate)

		if _, err := scanOnSite(t, svc, scan.DefaultMarker); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("propagates store failures", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker)
		expected := errors.New("disk full")
		store.getErr = expected

		if _, err := scanOnSite(t, svc, scan.DefaultMarker); !errors.Is(err, expected) {
			t.Fatalf("expected %v, got %v", expected, err)
		}
	})

	t.Run("concurrent first scans leave a single record", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeStructured)

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := scanOnSite(t, svc, `{"type":"entry"}`)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, ErrAlreadyExists):
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if succeeded != 1 || store.count() != 1 {
			t.Fatalf("expected one record, got %d successes and %d records", succeeded, store.count())
		}
	})

	t.Run("skips the geofence when disabled", func(t *testing.T) {
		t.Parallel()
		decoder, err := scan.NewDecoder(scan.Options{})
		if err != nil {
			t.Fatalf("NewDecoder failed: %v", err)
		}
		svc := NewAttendanceService(newRecordStoreStub(), testRoles, decoder, sequence("rec"), nil, AttendanceSettings{})

		if _, err := svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker}); err != nil {
			t.Fatalf("expected scan without position to succeed, got %v", err)
		}
	})
}

func TestAttendanceService_ScanUsesBusinessDay(t *testing.T) {
	t.Parallel()

	plus2 := time.FixedZone("UTC+2", 2*60*60)
	late := time.Date(2025, 6, 12, 23, 30, 0, 0, time.UTC)
	decoder, _ := scan.NewDecoder(scan.Options{})
	svc := NewAttendanceService(newRecordStoreStub(), testRoles, decoder, sequence("rec"), func() time.Time { return late }, AttendanceSettings{Location: plus2})

	result, err := svc.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := attendance.Date{Year: 2025, Month: time.June, Day: 13}
	if result.Record.Date != want {
		t.Fatalf("expected %s, got %s", want, result.Record.Date)
	}
}

func TestAttendanceService_ScanLogsClientSkew(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)
	decoder, err := scan.NewDecoder(scan.Options{Mode: scan.ModeStructured, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewAttendanceServiceWithLogger(newRecordStoreStub(), testRoles, decoder, sequence("rec"), func() time.Time { return now }, AttendanceSettings{}, logger)

	result, err := svc.Scan(context.Background(), ScanParams{
		Principal: employeePrincipal,
		Payload:   `{"type":"entry","timestamp":"2025-06-12T07:55:00Z"}`,
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !result.Record.EntryTime.Equal(now) {
		t.Fatalf("expected the server clock to decide the entry time, got %v", result.Record.EntryTime)
	}

	output := buf.String()
	if !strings.Contains(output, `"client_skew":"5m0s"`) {
		t.Fatalf("expected client skew in scan log, got %s", output)
	}
	if !strings.Contains(output, "scan payload clock differs from server clock") {
		t.Fatalf("expected skew warning, got %s", output)
	}

	buf.Reset()
	quiet := NewAttendanceServiceWithLogger(newRecordStoreStub(), testRoles, decoder, sequence("rec"), func() time.Time { return now }, AttendanceSettings{}, logger)
	if _, err := quiet.Scan(context.Background(), ScanParams{Principal: employeePrincipal, Payload: `{"type":"entry","timestamp":"2025-06-12T07:59:30Z"}`}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if strings.Contains(buf.String(), "differs from server clock") {
		t.Fatalf("expected no warning for a small skew, got %s", buf.String())
	}
}

func TestAttendanceService_TodayStatus(t *testing.T) {
	t.Parallel()

	svc, store, clock := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("old", "user-1", scanDay.AddDays(-1), attendance.StatusValidated))
	ctx := context.Background()

	status, err := svc.TodayStatus(ctx, employeePrincipal)
	if err != nil {
		t.Fatalf("TodayStatus failed: %v", err)
	}
	if status.Status != attendance.StatusNotScanned || status.CheckedIn || status.Record != nil {
		t.Fatalf("expected not scanned, got %#v", status)
	}

	if _, err := scanOnSite(t, svc, scan.DefaultMarker); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	status, err = svc.TodayStatus(ctx, employeePrincipal)
	if err != nil {
		t.Fatalf("TodayStatus failed: %v", err)
	}
	if status.Status != attendance.StatusPresent || !status.CheckedIn || status.Record == nil {
		t.Fatalf("expected present and checked in, got %#v", status)
	}

	calls := store.listCalls
	if _, err := svc.TodayStatus(ctx, employeePrincipal); err != nil {
		t.Fatalf("TodayStatus failed: %v", err)
	}
	if store.listCalls != calls {
		t.Fatalf("expected repeated status reads to be served from cache")
	}

	clock.Advance(time.Hour)
	if _, err := scanOnSite(t, svc, scan.DefaultMarker); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	status, err = svc.TodayStatus(ctx, employeePrincipal)
	if err != nil {
		t.Fatalf("TodayStatus failed: %v", err)
	}
	if status.Status != attendance.StatusCheckedOut || status.CheckedIn {
		t.Fatalf("expected checked out after exit scan, got %#v", status)
	}
}

func TestAttendanceService_ListRecords(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("a", "user-1", scanDay.AddDays(-2), attendance.StatusValidated),
		closedRecord("b", "user-1", scanDay.AddDays(-1), attendance.StatusPending),
		closedRecord("c", "user-2", scanDay.AddDays(-1), attendance.StatusCheckedOut),
	)
	ctx := context.Background()

	own, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(own) != 2 || own[0].ID != "b" {
		t.Fatalf("expected own records most recent first, got %#v", own)
	}

	pending, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal, Filter: RecordFilterPending})
	if err != nil || len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("expected the pending record only, got %#v (%v)", pending, err)
	}

	if _, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal, UserID: "user-2"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another user's records, got %v", err)
	}

	others, err := svc.ListRecords(ctx, ListRecordsParams{Principal: managerPrincipal, UserID: "user-2"})
	if err != nil || len(others) != 1 {
		t.Fatalf("expected managers to list other users, got %#v (%v)", others, err)
	}

	var vErr *ValidationError
	if _, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal, Filter: "weird"}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown filter, got %v", err)
	}
}

// racingRecordStore runs duringList once, after a listing was read and before
// it is returned, like a write landing between the read and the cache fill.
type racingRecordStore struct {
	*recordStoreStub
	duringList func()
}

func (r *racingRecordStore) ListRecordsByUser(ctx context.Context, userID string, query RecordQuery) ([]Record, error) {
	records, err := r.recordStoreStub.ListRecordsByUser(ctx, userID, query)
	if hook := r.duringList; hook != nil {
		r.duringList = nil
		hook()
	}
	return records, err
}

func TestAttendanceService_ListRecordsSkipsCachingStaleReads(t *testing.T) {
	t.Parallel()

	clock := &testClock{current: time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)}
	decoder, err := scan.NewDecoder(scan.Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	store := &racingRecordStore{recordStoreStub: newRecordStoreStub()}
	svc := NewAttendanceService(store, testRoles, decoder, sequence("rec"), clock.Now, AttendanceSettings{
		Location:     time.UTC,
		StoreTimeout: time.Second,
		CacheTTL:     time.Minute,
	})
	ctx := context.Background()

	store.duringList = func() {
		if _, err := svc.Scan(ctx, ScanParams{Principal: employeePrincipal, Payload: scan.DefaultMarker}); err != nil {
			t.Errorf("concurrent scan failed: %v", err)
		}
	}

	stale, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected the listing read before the scan, got %#v", stale)
	}

	current, err := svc.ListRecords(ctx, ListRecordsParams{Principal: employeePrincipal})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(current) != 1 {
		t.Fatalf("expected the scanned record after the write, got %#v", current)
	}
}

func TestAttendanceService_History(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("today", "user-1", scanDay, attendance.StatusCheckedOut),
		closedRecord("d-3", "user-1", scanDay.AddDays(-3), attendance.StatusValidated),
		closedRecord("d-10", "user-1", scanDay.AddDays(-10), attendance.StatusValidated),
	)

	days, err := svc.History(context.Background(), employeePrincipal, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(days) != 2 || days[0].Date != scanDay || days[1].Date != scanDay.AddDays(-3) {
		t.Fatalf("expected two days in the default window, got %#v", days)
	}
	if days[0].Worked != 8*time.Hour {
		t.Fatalf("expected 8h worked, got %v", days[0].Worked)
	}

	var vErr *ValidationError
	if _, err := svc.History(context.Background(), employeePrincipal, 400); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for oversized window, got %v", err)
	}
}

func TestAttendanceService_GetRecord(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("mine", "user-1", scanDay, attendance.StatusCheckedOut),
		closedRecord("theirs", "user-2", scanDay, attendance.StatusCheckedOut),
	)
	ctx := context.Background()

	if _, err := svc.GetRecord(ctx, employeePrincipal, "mine"); err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if _, err := svc.GetRecord(ctx, employeePrincipal, "theirs"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetRecord(ctx, managerPrincipal, "theirs"); err != nil {
		t.Fatalf("expected manager access, got %v", err)
	}
	if _, err := svc.GetRecord(ctx, employeePrincipal, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttendanceService_UpdateComment(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("open-review", "user-1", scanDay, attendance.StatusCheckedOut),
		closedRecord("done", "user-1", scanDay.AddDays(-1), attendance.StatusValidated),
	)
	ctx := context.Background()

	record, err := svc.UpdateComment(ctx, UpdateCommentParams{Principal: employeePrincipal, RecordID: "open-review", Comment: "  Retard dû au trafic  "})
	if err != nil {
		t.Fatalf("UpdateComment failed: %v", err)
	}
	if record.Comment == nil || *record.Comment != "Retard dû au trafic" || record.Status != attendance.StatusModified {
		t.Fatalf("unexpected record %#v", record)
	}

	if _, err := svc.UpdateComment(ctx, UpdateCommentParams{Principal: employeePrincipal, RecordID: "done", Comment: "late"}); !errors.Is(err, ErrAlreadyValidated) {
		t.Fatalf("expected ErrAlreadyValidated, got %v", err)
	}

	var vErr *ValidationError
	if _, err := svc.UpdateComment(ctx, UpdateCommentParams{Principal: employeePrincipal, RecordID: "open-review", Comment: "  "}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for blank comment, got %v", err)
	}

	other := Principal{UserID: "user-2", Role: RoleEmployee}
	if _, err := svc.UpdateComment(ctx, UpdateCommentParams{Principal: other, RecordID: "open-review", Comment: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAttendanceService_SubmitRecord(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker,
		closedRecord("closed", "user-1", scanDay.AddDays(-1), attendance.StatusModified),
	)
	ctx := context.Background()

	record, err := svc.SubmitRecord(ctx, employeePrincipal, "closed")
	if err != nil {
		t.Fatalf("SubmitRecord failed: %v", err)
	}
	if record.Status != attendance.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}

	if _, err := svc.SubmitRecord(ctx, managerPrincipal, "closed"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected only the owner to submit, got %v", err)
	}

	if _, err := scanOnSite(t, svc, scan.DefaultMarker); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if _, err := svc.SubmitRecord(ctx, employeePrincipal, "rec-1"); !errors.Is(err, ErrRecordOpen) {
		t.Fatalf("expected ErrRecordOpen, got %v", err)
	}
}

func TestAttendanceService_ValidateRecord(t *testing.T) {
	t.Parallel()

	t.Run("managers validate pending records", func(t *testing.T) {
		t.Parallel()
		svc, _, clock := newAttendanceFixture(t, scan.ModeMarker,
			closedRecord("pending", "user-1", scanDay.AddDays(-1), attendance.StatusPending))

		record, err := svc.ValidateRecord(context.Background(), managerPrincipal, "pending")
		if err != nil {
			t.Fatalf("ValidateRecord failed: %v", err)
		}
		if record.Status != attendance.StatusValidated || record.ValidatedBy == nil || *record.ValidatedBy != "manager-1" {
			t.Fatalf("unexpected record %#v", record)
		}
		if record.ValidatedAt == nil || !record.ValidatedAt.Equal(clock.Now()) {
			t.Fatalf("expected validation timestamp, got %v", record.ValidatedAt)
		}

		if _, err := svc.ValidateRecord(context.Background(), managerPrincipal, "pending"); !errors.Is(err, ErrAlreadyValidated) {
			t.Fatalf("expected ErrAlreadyValidated, got %v", err)
		}
	})

	t.Run("non managers are rejected without mutation", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newAttendanceFixture(t, scan.ModeMarker,
			closedRecord("pending", "user-1", scanDay.AddDays(-1), attendance.StatusPending))

		// A stale principal claiming the manager role is checked against the resolver.
		stale := Principal{UserID: "user-2", Role: RoleManager}
		if _, err := svc.ValidateRecord(context.Background(), stale, "pending"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		record, _ := store.GetRecord(context.Background(), "pending")
		if record.Status != attendance.StatusPending || record.ValidatedBy != nil {
			t.Fatalf("expected record untouched, got %#v", record)
		}
	})

	t.Run("open records cannot be validated", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newAttendanceFixture(t, scan.ModeMarker)
		if _, err := scanOnSite(t, svc, scan.DefaultMarker); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}

		if _, err := svc.ValidateRecord(context.Background(), managerPrincipal, "rec-1"); !errors.Is(err, ErrRecordOpen) {
			t.Fatalf("expected ErrRecordOpen, got %v", err)
		}
	})
}

func TestAttendanceService_CheckZone(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAttendanceFixture(t, scan.ModeMarker)
	ctx := context.Background()

	inside, err := svc.CheckZone(ctx, onSite)
	if err != nil || !inside.Inside || !inside.Enabled {
		t.Fatalf("expected inside, got %#v (%v)", inside, err)
	}
	outside, err := svc.CheckZone(ctx, offSite)
	if err != nil || outside.Inside {
		t.Fatalf("expected outside, got %#v (%v)", outside, err)
	}
	if _, err := svc.CheckZone(ctx, nil); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
