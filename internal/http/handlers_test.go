package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/scan"
)

var (
	employeePrincipal = application.Principal{UserID: "user-1", Email: "awa@tevia.ci", DisplayName: "Awa", Role: application.RoleEmployee}
	managerPrincipal  = application.Principal{UserID: "manager-1", Email: "kone@tevia.ci", DisplayName: "Koné", Role: application.RoleManager}
)

type stubValidator struct {
	principals map[string]application.Principal
	err        error
}

func (s stubValidator) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	principal, ok := s.principals[token]
	if !ok {
		return application.Principal{}, application.ErrSessionRevoked
	}
	return principal, nil
}

type stubAuthService struct {
	authenticate func(application.AuthenticateParams) (application.AuthenticateResult, error)
	revoked      []string
}

func (s *stubAuthService) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.authenticate(params)
}

func (s *stubAuthService) RefreshSession(_ context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
	return application.RefreshSessionResult{Session: application.Session{ID: "session-2", Token: params.Token + "-next", ExpiresAt: time.Now().Add(time.Hour)}}, nil
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

type stubAttendanceService struct {
	scan     func(application.ScanParams) (application.ScanResult, error)
	validate func(application.Principal, string) (application.Record, error)
	comment  func(application.UpdateCommentParams) (application.Record, error)
	list     func(application.ListRecordsParams) ([]application.Record, error)
}

func (s *stubAttendanceService) Scan(_ context.Context, params application.ScanParams) (application.ScanResult, error) {
	return s.scan(params)
}

func (s *stubAttendanceService) CheckZone(_ context.Context, point *geofence.Point) (application.ZoneCheck, error) {
	if point == nil {
		return application.ZoneCheck{}, application.ErrPermissionDenied
	}
	return application.ZoneCheck{Enabled: true, Inside: true}, nil
}

func (s *stubAttendanceService) TodayStatus(_ context.Context, principal application.Principal) (application.TodayStatus, error) {
	return application.TodayStatus{Date: testDate, Status: attendance.StatusNotScanned}, nil
}

func (s *stubAttendanceService) ListRecords(_ context.Context, params application.ListRecordsParams) ([]application.Record, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(params)
}

func (s *stubAttendanceService) History(_ context.Context, _ application.Principal, days int) ([]attendance.Day, error) {
	return []attendance.Day{{Date: testDate}}, nil
}

func (s *stubAttendanceService) GetRecord(_ context.Context, _ application.Principal, id string) (application.Record, error) {
	if id != "rec-1" {
		return application.Record{}, application.ErrNotFound
	}
	return openRecord(), nil
}

func (s *stubAttendanceService) UpdateComment(_ context.Context, params application.UpdateCommentParams) (application.Record, error) {
	return s.comment(params)
}

func (s *stubAttendanceService) SubmitRecord(_ context.Context, _ application.Principal, _ string) (application.Record, error) {
	return application.Record{}, application.ErrRecordOpen
}

func (s *stubAttendanceService) ValidateRecord(_ context.Context, principal application.Principal, id string) (application.Record, error) {
	return s.validate(principal, id)
}

type stubUserService struct{}

func (stubUserService) CreateUser(_ context.Context, params application.CreateUserParams) (application.User, error) {
	if !params.Principal.IsManager() {
		return application.User{}, application.ErrUnauthorized
	}
	if params.Input.Password == "" {
		return application.User{}, &application.ValidationError{FieldErrors: map[string]string{"password": "password is required"}}
	}
	return application.User{ID: "user-9", Email: params.Input.Email, Role: params.Input.Role}, nil
}

func (stubUserService) UpdateUser(_ context.Context, params application.UpdateUserParams) (application.User, error) {
	return application.User{ID: params.UserID}, nil
}

func (stubUserService) DeleteUser(_ context.Context, _ application.Principal, _ string) error {
	return application.ErrUserHasRecords
}

func (stubUserService) ListUsers(_ context.Context, principal application.Principal) ([]application.User, error) {
	if !principal.IsManager() {
		return nil, application.ErrUnauthorized
	}
	return []application.User{{ID: "user-1"}, {ID: "manager-1"}}, nil
}

func (stubUserService) GetUser(_ context.Context, _ application.Principal, userID string) (application.User, error) {
	return application.User{ID: userID}, nil
}

type stubKiosk struct{}

func (stubKiosk) Mode() scan.Mode { return scan.ModeStructured }

func (stubKiosk) KioskCodes() ([]scan.KioskCode, error) {
	return []scan.KioskCode{
		{Kind: attendance.ScanEntry, Payload: "entree"},
		{Kind: attendance.ScanExit, Payload: "sortie"},
	}, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

var testDate = attendance.Date{Year: 2026, Month: time.March, Day: 2}

func openRecord() application.Record {
	entry := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	return application.Record{
		ID:        "rec-1",
		UserID:    employeePrincipal.UserID,
		Date:      testDate,
		EntryTime: &entry,
		Status:    attendance.StatusPresent,
		CreatedAt: entry,
		UpdatedAt: entry,
	}
}

type testServer struct {
	handler    http.Handler
	auth       *stubAuthService
	attendance *stubAttendanceService
	store      *stubPinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	srv := &testServer{
		auth: &stubAuthService{authenticate: func(params application.AuthenticateParams) (application.AuthenticateResult, error) {
			if params.Password != "correct-horse" {
				return application.AuthenticateResult{}, application.ErrInvalidCredentials
			}
			return application.AuthenticateResult{
				User:    application.User{ID: employeePrincipal.UserID, Email: params.Email, Role: application.RoleEmployee},
				Session: application.Session{ID: "session-1", Token: "token-1", ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		}},
		attendance: &stubAttendanceService{},
		store:      &stubPinger{},
	}
	validator := stubValidator{principals: map[string]application.Principal{
		"employee-token": employeePrincipal,
		"manager-token":  managerPrincipal,
	}}

	srv.handler = NewRouter(RouterConfig{
		Auth:           NewAuthHandler(srv.auth, nil),
		Attendance:     NewAttendanceHandler(srv.attendance, nil),
		Users:          NewUserHandler(stubUserService{}, nil),
		System:         NewSystemHandler(stubKiosk{}, srv.store, nil),
		RequireSession: RequireSession(validator, nil),
		Middleware:     []func(http.Handler) http.Handler{Localize()},
	})
	return srv
}

func (s *testServer) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/sessions", "", `{"email":" Awa@Tevia.ci ","password":"correct-horse"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("X-Session-Token"); got != "token-1" {
			t.Fatalf("expected session header, got %q", got)
		}
		var found bool
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.Value == "token-1" && cookie.HttpOnly {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected http-only session cookie, got %v", rec.Result().Cookies())
		}

		var body sessionResponse
		decodeBody(t, rec, &body)
		if body.User == nil || body.User.Email != "awa@tevia.ci" {
			t.Fatalf("expected normalized email in response, got %#v", body.User)
		}
	})

	t.Run("wrong password maps to 401 with a French message", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/sessions", "", `{"email":"awa@tevia.ci","password":"nope"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.ErrorCode != "INVALID_CREDENTIALS" || body.Message != "Adresse e-mail ou mot de passe incorrect." {
			t.Fatalf("unexpected error body: %#v", body)
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodDelete, "/sessions/current", "employee-token", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(srv.auth.revoked) != 1 || srv.auth.revoked[0] != "employee-token" {
			t.Fatalf("expected token to be revoked, got %v", srv.auth.revoked)
		}
	})

	t.Run("refresh rotates the token", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/sessions/refresh", "employee-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Session-Token"); got != "employee-token-next" {
			t.Fatalf("expected rotated token, got %q", got)
		}
	})
}

func TestAttendanceHandlers(t *testing.T) {
	t.Parallel()

	t.Run("first scan of the day answers 201 and the exit answers 200", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		calls := 0
		srv.attendance.scan = func(params application.ScanParams) (application.ScanResult, error) {
			calls++
			if params.Principal.UserID != employeePrincipal.UserID {
				t.Fatalf("expected principal from session, got %#v", params.Principal)
			}
			if params.Location == nil || params.Location.Latitude != 6.8467 {
				t.Fatalf("expected location to be forwarded, got %#v", params.Location)
			}
			record := openRecord()
			if calls == 1 {
				return application.ScanResult{Record: record, Transition: attendance.TransitionEntry, CheckedIn: true}, nil
			}
			exit := record.EntryTime.Add(8 * time.Hour)
			record.ExitTime = &exit
			record.Status = attendance.StatusCheckedOut
			return application.ScanResult{Record: record, Transition: attendance.TransitionExit}, nil
		}

		body := `{"payload":"Tevia Energie Pass Ok","latitude":6.8467,"longitude":-5.284}`
		rec := srv.do(t, http.MethodPost, "/scans", "employee-token", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var entry scanResponse
		decodeBody(t, rec, &entry)
		if entry.Transition != "entry" || !entry.CheckedIn || entry.Record.StatusLabel != "Présent" {
			t.Fatalf("unexpected entry response: %#v", entry)
		}

		rec = srv.do(t, http.MethodPost, "/scans", "employee-token", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var exit scanResponse
		decodeBody(t, rec, &exit)
		if exit.Transition != "exit" || exit.Record.ExitTime == nil {
			t.Fatalf("unexpected exit response: %#v", exit)
		}
	})

	t.Run("garbage payload maps to 422", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.scan = func(application.ScanParams) (application.ScanResult, error) {
			return application.ScanResult{}, application.ErrInvalidPayload
		}

		rec := srv.do(t, http.MethodPost, "/scans", "employee-token", `{"payload":"hello","latitude":6.8,"longitude":-5.2}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.ErrorCode != "INVALID_PAYLOAD" || body.Message != "QR code invalide." {
			t.Fatalf("unexpected error body: %#v", body)
		}
	})

	t.Run("out of zone maps to 403 in the negotiated language", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.scan = func(application.ScanParams) (application.ScanResult, error) {
			return application.ScanResult{}, application.ErrOutOfZone
		}

		rec := srv.do(t, http.MethodPost, "/scans", "employee-token", `{"payload":"x","latitude":5.3,"longitude":-4.0}`,
			"Accept-Language", "en-US,en;q=0.9")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.ErrorCode != "OUT_OF_ZONE" || body.Message != "You are outside the authorized zone." {
			t.Fatalf("unexpected error body: %#v", body)
		}
		if got := rec.Header().Get("Content-Language"); got != "en" {
			t.Fatalf("expected Content-Language en, got %q", got)
		}
	})

	t.Run("half a position is a validation error", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.scan = func(application.ScanParams) (application.ScanResult, error) {
			t.Fatalf("service must not be called")
			return application.ScanResult{}, nil
		}

		rec := srv.do(t, http.MethodPost, "/scans", "employee-token", `{"payload":"x","latitude":5.3}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Errors["location"] != "La latitude et la longitude doivent être fournies ensemble." {
			t.Fatalf("expected localized field error, got %#v", body.Errors)
		}
	})

	t.Run("malformed JSON maps to 400", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/scans", "employee-token", `{"payload":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing position on zone check maps to 403", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/zone/check", "employee-token", `{}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.ErrorCode != "PERMISSION_DENIED" {
			t.Fatalf("expected PERMISSION_DENIED, got %#v", body)
		}
	})

	t.Run("me reports the principal and today's status", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodGet, "/me", "employee-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body meResponse
		decodeBody(t, rec, &body)
		if body.User.ID != employeePrincipal.UserID || body.Today.Date != "2026-03-02" || body.Today.StatusLabel != "Jour non scanné" {
			t.Fatalf("unexpected me response: %#v", body)
		}
	})

	t.Run("list forwards filters and rejects bad dates", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.list = func(params application.ListRecordsParams) ([]application.Record, error) {
			if params.Filter != application.RecordFilterPending || params.UserID != "user-1" || params.Since != testDate {
				t.Fatalf("unexpected list params: %#v", params)
			}
			return []application.Record{openRecord()}, nil
		}

		rec := srv.do(t, http.MethodGet, "/records?filter=Pending&user_id=user-1&since=2026-03-02", "manager-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body listRecordsResponse
		decodeBody(t, rec, &body)
		if len(body.Records) != 1 || body.Records[0].ID != "rec-1" {
			t.Fatalf("unexpected records: %#v", body.Records)
		}

		rec = srv.do(t, http.MethodGet, "/records?since=02/03/2026", "manager-token", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad since, got %d", rec.Code)
		}
	})

	t.Run("history validates the days parameter", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		if rec := srv.do(t, http.MethodGet, "/records/history?days=0", "employee-token", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		rec := srv.do(t, http.MethodGet, "/records/history?days=7", "employee-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body historyResponse
		decodeBody(t, rec, &body)
		if len(body.Days) != 1 || body.Days[0].Date != "2026-03-02" {
			t.Fatalf("unexpected history: %#v", body)
		}
	})

	t.Run("record routes map sentinel errors", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		if rec := srv.do(t, http.MethodGet, "/records/rec-1", "employee-token", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec := srv.do(t, http.MethodGet, "/records/missing", "employee-token", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if rec := srv.do(t, http.MethodPost, "/records/rec-1/submit", "employee-token", ""); rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 for open record, got %d", rec.Code)
		}
		if rec := srv.do(t, http.MethodGet, "/records/rec-1/submit", "employee-token", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if rec := srv.do(t, http.MethodPost, "/records/rec-1/archive", "employee-token", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
		}
	})

	t.Run("only managers validate", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.validate = func(principal application.Principal, id string) (application.Record, error) {
			if !principal.IsManager() {
				return application.Record{}, application.ErrUnauthorized
			}
			record := openRecord()
			record.Status = attendance.StatusValidated
			return record, nil
		}

		rec := srv.do(t, http.MethodPost, "/records/rec-1/validate", "employee-token", "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		rec = srv.do(t, http.MethodPost, "/records/rec-1/validate", "manager-token", "", "Accept-Language", "en")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body recordResponse
		decodeBody(t, rec, &body)
		if body.Record.Status != "validated" || body.Record.StatusLabel != "Validated" {
			t.Fatalf("unexpected record: %#v", body.Record)
		}
	})

	t.Run("comment validation errors are localized", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.attendance.comment = func(params application.UpdateCommentParams) (application.Record, error) {
			if params.RecordID != "rec-1" {
				t.Fatalf("expected record id from path, got %q", params.RecordID)
			}
			return application.Record{}, &application.ValidationError{FieldErrors: map[string]string{"comment": "comment is required"}}
		}

		rec := srv.do(t, http.MethodPatch, "/records/rec-1", "employee-token", `{"comment":"  "}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Errors["comment"] != "Le commentaire est obligatoire." {
			t.Fatalf("expected French field error, got %#v", body.Errors)
		}

		rec = srv.do(t, http.MethodPatch, "/records/rec-1?lang=en", "employee-token", `{"comment":"  "}`)
		decodeBody(t, rec, &body)
		if body.Errors["comment"] != "comment is required" {
			t.Fatalf("expected English field error, got %#v", body.Errors)
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("require manager authorization", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		if rec := srv.do(t, http.MethodGet, "/users", "employee-token", ""); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		rec := srv.do(t, http.MethodGet, "/users", "manager-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body listUsersResponse
		decodeBody(t, rec, &body)
		if len(body.Users) != 2 {
			t.Fatalf("expected two users, got %#v", body.Users)
		}
	})

	t.Run("return localized validation errors", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodPost, "/users", "manager-token", `{"email":"new@tevia.ci","display_name":"New","role":"employee"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Errors["password"] != "Le mot de passe est obligatoire." {
			t.Fatalf("expected French password error, got %#v", body.Errors)
		}
	})

	t.Run("deleting a user with records conflicts", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodDelete, "/users/user-1", "manager-token", "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("get reads the id from the path", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodGet, "/users/user-7", "manager-token", "")
		var body userResponse
		decodeBody(t, rec, &body)
		if rec.Code != http.StatusOK || body.User.ID != "user-7" {
			t.Fatalf("unexpected response %d %#v", rec.Code, body)
		}
	})
}

func TestSystemHandlers(t *testing.T) {
	t.Parallel()

	t.Run("kiosk codes are reserved to managers", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		if rec := srv.do(t, http.MethodGet, "/kiosk/code", "employee-token", ""); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		rec := srv.do(t, http.MethodGet, "/kiosk/code", "manager-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-store" {
			t.Fatalf("expected no-store, got %q", got)
		}
		var body kioskResponse
		decodeBody(t, rec, &body)
		if body.Mode != "structured" || len(body.Codes) != 2 || body.Codes[0].Kind != "entry" || body.Codes[0].ValidUntil != nil {
			t.Fatalf("unexpected kiosk response: %#v", body)
		}
	})

	t.Run("health does not require a session", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec := srv.do(t, http.MethodGet, "/healthz", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("health reports an unreachable store", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		srv.store.err = errors.New("database is locked")

		rec := srv.do(t, http.MethodGet, "/healthz", "", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		var body healthResponse
		decodeBody(t, rec, &body)
		if body.Status != "unavailable" || body.Message != "Le service de stockage est indisponible." {
			t.Fatalf("unexpected health body: %#v", body)
		}
	})
}
