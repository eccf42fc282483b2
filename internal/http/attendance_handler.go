package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
)

var (
	errInvalidDays  = errors.New("request.invalid_days")
	errInvalidSince = errors.New("request.invalid_since")
)

type attendanceService interface {
	Scan(ctx context.Context, params application.ScanParams) (application.ScanResult, error)
	CheckZone(ctx context.Context, point *geofence.Point) (application.ZoneCheck, error)
	TodayStatus(ctx context.Context, principal application.Principal) (application.TodayStatus, error)
	ListRecords(ctx context.Context, params application.ListRecordsParams) ([]application.Record, error)
	History(ctx context.Context, principal application.Principal, days int) ([]attendance.Day, error)
	GetRecord(ctx context.Context, principal application.Principal, id string) (application.Record, error)
	UpdateComment(ctx context.Context, params application.UpdateCommentParams) (application.Record, error)
	SubmitRecord(ctx context.Context, principal application.Principal, id string) (application.Record, error)
	ValidateRecord(ctx context.Context, principal application.Principal, id string) (application.Record, error)
}

type AttendanceHandler struct {
	service   attendanceService
	responder responder
	logger    *slog.Logger
}

func NewAttendanceHandler(service attendanceService, logger *slog.Logger) *AttendanceHandler {
	base := defaultLogger(logger)
	return &AttendanceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AttendanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AttendanceHandler", operation, attrs...)
}

// Me returns the authenticated user and the status of the current day.
func (h *AttendanceHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	today, err := h.service.TodayStatus(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Me", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "today status failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	tag := LanguageFromContext(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meResponse{
		User: userDTO{
			ID:          principal.UserID,
			Email:       principal.Email,
			DisplayName: principal.DisplayName,
			Role:        string(principal.Role),
		},
		Today: toTodayDTO(tag, today),
	})
}

func (h *AttendanceHandler) CheckZone(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CheckZone", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode zone check", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	point, err := req.point()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	check, err := h.service.CheckZone(r.Context(), point)
	if err != nil {
		h.log(r.Context(), "CheckZone", "principal_id", principal.UserID).
			WarnContext(r.Context(), "zone check rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, zoneResponse{
		Enabled:   check.Enabled,
		Inside:    check.Inside,
		Latitude:  check.Zone.Center.Latitude,
		Longitude: check.Zone.Center.Longitude,
		Tolerance: check.Zone.Tolerance,
	})
}

func (h *AttendanceHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Scan", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode scan request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	point, err := req.point()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Scan", "principal_id", principal.UserID)
	result, err := h.service.Scan(r.Context(), application.ScanParams{
		Principal: principal,
		Payload:   req.Payload,
		Location:  point,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "scan rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	transition := "exit"
	if result.Transition == attendance.TransitionEntry {
		status = http.StatusCreated
		transition = "entry"
	}
	logger.With("record_id", result.Record.ID, "transition", transition).InfoContext(r.Context(), "scan accepted")

	tag := LanguageFromContext(r.Context())
	h.responder.writeJSON(r.Context(), w, status, scanResponse{
		Transition: transition,
		CheckedIn:  result.CheckedIn,
		Record:     toRecordDTO(tag, result.Record),
	})
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	params := application.ListRecordsParams{
		Principal: principal,
		UserID:    strings.TrimSpace(query.Get("user_id")),
		Filter:    application.RecordFilter(strings.ToLower(strings.TrimSpace(query.Get("filter")))),
	}
	if since := strings.TrimSpace(query.Get("since")); since != "" {
		date, err := attendance.ParseDate(since)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSince)
			return
		}
		params.Since = date
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "user_id", params.UserID, "filter", params.Filter)
	records, err := h.service.ListRecords(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "record list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(records)).DebugContext(r.Context(), "records listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRecordsResponse{Records: toRecordDTOs(LanguageFromContext(r.Context()), records)})
}

func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	days := 0
	if value := strings.TrimSpace(r.URL.Query().Get("days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDays)
			return
		}
		days = parsed
	}

	history, err := h.service.History(r.Context(), principal, days)
	if err != nil {
		h.log(r.Context(), "History", "principal_id", principal.UserID, "days", days).
			ErrorContext(r.Context(), "history failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	tag := LanguageFromContext(r.Context())
	out := make([]dayDTO, 0, len(history))
	for _, day := range history {
		out = append(out, dayDTO{
			Date:          day.Date.String(),
			WorkedMinutes: int64(day.Worked.Minutes()),
			Records:       toRecordDTOs(tag, day.Records),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{Days: out})
}

func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "Get", func(s attendanceService) recordOperation { return s.GetRecord })
}

func (h *AttendanceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "Submit", func(s attendanceService) recordOperation { return s.SubmitRecord })
}

func (h *AttendanceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "Validate", func(s attendanceService) recordOperation { return s.ValidateRecord })
}

func (h *AttendanceHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateComment", "principal_id", principal.UserID, "record_id", recordID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode comment", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	record, err := h.service.UpdateComment(r.Context(), application.UpdateCommentParams{
		Principal: principal,
		RecordID:  recordID,
		Comment:   req.Comment,
	})
	if err != nil {
		h.log(r.Context(), "UpdateComment", "principal_id", principal.UserID, "record_id", recordID).
			ErrorContext(r.Context(), "comment update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, recordResponse{Record: toRecordDTO(LanguageFromContext(r.Context()), record)})
}

type recordOperation func(ctx context.Context, principal application.Principal, id string) (application.Record, error)

func (h *AttendanceHandler) recordAction(w http.ResponseWriter, r *http.Request, operation string, pick func(attendanceService) recordOperation) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing record id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "record_id", recordID)
	record, err := pick(h.service)(r.Context(), principal, recordID)
	if err != nil {
		logger.ErrorContext(r.Context(), "record operation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", record.Status).DebugContext(r.Context(), "record operation completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, recordResponse{Record: toRecordDTO(LanguageFromContext(r.Context()), record)})
}

type positionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// point returns nil when the client sent no position at all.
func (p positionRequest) point() (*geofence.Point, error) {
	switch {
	case p.Latitude == nil && p.Longitude == nil:
		return nil, nil
	case p.Latitude == nil || p.Longitude == nil:
		return nil, &application.ValidationError{FieldErrors: map[string]string{
			"location": "latitude and longitude must be provided together",
		}}
	}
	return &geofence.Point{Latitude: *p.Latitude, Longitude: *p.Longitude}, nil
}

type scanRequest struct {
	Payload string `json:"payload"`
	positionRequest
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type meResponse struct {
	User  userDTO  `json:"user"`
	Today todayDTO `json:"today"`
}

type todayDTO struct {
	Date        string     `json:"date"`
	Status      string     `json:"status"`
	StatusLabel string     `json:"status_label"`
	CheckedIn   bool       `json:"checked_in"`
	Record      *recordDTO `json:"record,omitempty"`
}

type zoneResponse struct {
	Enabled   bool    `json:"enabled"`
	Inside    bool    `json:"inside"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Tolerance float64 `json:"tolerance"`
}

type scanResponse struct {
	Transition string    `json:"transition"`
	CheckedIn  bool      `json:"checked_in"`
	Record     recordDTO `json:"record"`
}

type recordResponse struct {
	Record recordDTO `json:"record"`
}

type listRecordsResponse struct {
	Records []recordDTO `json:"records"`
}

type historyResponse struct {
	Days []dayDTO `json:"days"`
}

type dayDTO struct {
	Date          string      `json:"date"`
	WorkedMinutes int64       `json:"worked_minutes"`
	Records       []recordDTO `json:"records"`
}

type locationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type recordDTO struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Date        string       `json:"date"`
	EntryTime   *string      `json:"entry_time"`
	ExitTime    *string      `json:"exit_time"`
	Status      string       `json:"status"`
	StatusLabel string       `json:"status_label"`
	Comment     *string      `json:"comment,omitempty"`
	ValidatedBy *string      `json:"validated_by,omitempty"`
	ValidatedAt *string      `json:"validated_at,omitempty"`
	Location    *locationDTO `json:"location,omitempty"`
	Site        string       `json:"site,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

func toRecordDTO(tag language.Tag, record application.Record) recordDTO {
	dto := recordDTO{
		ID:          record.ID,
		UserID:      record.UserID,
		Date:        record.Date.String(),
		EntryTime:   formatTimePtr(record.EntryTime),
		ExitTime:    formatTimePtr(record.ExitTime),
		Status:      string(record.Status),
		StatusLabel: statusLabel(tag, record.Status),
		Comment:     record.Comment,
		ValidatedBy: record.ValidatedBy,
		ValidatedAt: formatTimePtr(record.ValidatedAt),
		Site:        record.Site,
		CreatedAt:   formatTime(record.CreatedAt),
		UpdatedAt:   formatTime(record.UpdatedAt),
	}
	if record.Location != nil {
		dto.Location = &locationDTO{Latitude: record.Location.Latitude, Longitude: record.Location.Longitude}
	}
	return dto
}

func toRecordDTOs(tag language.Tag, records []application.Record) []recordDTO {
	out := make([]recordDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordDTO(tag, record))
	}
	return out
}

func toTodayDTO(tag language.Tag, today application.TodayStatus) todayDTO {
	dto := todayDTO{
		Date:        today.Date.String(),
		Status:      string(today.Status),
		StatusLabel: statusLabel(tag, today.Status),
		CheckedIn:   today.CheckedIn,
	}
	if today.Record != nil {
		record := toRecordDTO(tag, *today.Record)
		dto.Record = &record
	}
	return dto
}
