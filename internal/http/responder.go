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
)

var (
	errBadRequestBody      = errors.New("request.bad_body")
	errInvalidID           = errors.New("request.invalid_id")
	errMissingSessionToken = errors.New("request.missing_token")
)

// statusByKind maps application.ErrorKind labels to HTTP status codes.
var statusByKind = map[string]int{
	"invalid_payload":     http.StatusUnprocessableEntity,
	"out_of_zone":         http.StatusForbidden,
	"permission_denied":   http.StatusForbidden,
	"already_exists":      http.StatusConflict,
	"already_closed":      http.StatusConflict,
	"already_validated":   http.StatusConflict,
	"record_open":         http.StatusConflict,
	"user_has_records":    http.StatusConflict,
	"not_found":           http.StatusNotFound,
	"unauthorized":        http.StatusForbidden,
	"invalid_credentials": http.StatusUnauthorized,
	"session_expired":     http.StatusUnauthorized,
	"session_revoked":     http.StatusUnauthorized,
	"validation":          http.StatusUnprocessableEntity,
	"timeout":             http.StatusServiceUnavailable,
	"canceled":            http.StatusServiceUnavailable,
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Language", LanguageFromContext(ctx).String())
	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError answers with a localized message. err is either a request
// sentinel whose text is a catalog key, or nil for the generic status text.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	tag := LanguageFromContext(ctx)
	message := translate(tag, "status."+strconv.Itoa(status))
	if err != nil {
		if key := strings.TrimSpace(err.Error()); key != "" {
			message = translate(tag, key)
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}

	kind := application.ErrorKind(err)
	status, ok := statusByKind[kind]
	if !ok {
		kind = "unexpected"
		status = http.StatusInternalServerError
	}

	tag := LanguageFromContext(ctx)
	resp := errorResponse{
		ErrorCode: strings.ToUpper(kind),
		Message:   translate(tag, "error."+kind),
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		resp.Errors = localizeValidationErrors(tag, vErr)
	}
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "service failure", "status", status, "error", err, "error_kind", kind)
	}

	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizeValidationErrors(tag language.Tag, vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translate(tag, msg)
	}
	return translated
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
