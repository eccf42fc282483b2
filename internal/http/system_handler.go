package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/scan"
)

// KioskCodeSource issues the QR payloads displayed at the office entrance.
type KioskCodeSource interface {
	Mode() scan.Mode
	KioskCodes() ([]scan.KioskCode, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	codes     KioskCodeSource
	store     Pinger
	responder responder
	logger    *slog.Logger
}

func NewSystemHandler(codes KioskCodeSource, store Pinger, logger *slog.Logger) *SystemHandler {
	base := defaultLogger(logger)
	return &SystemHandler{codes: codes, store: store, responder: newResponder(base), logger: base}
}

func (h *SystemHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SystemHandler", operation, attrs...)
}

// KioskCode returns the payloads a kiosk should render. Managers only.
func (h *SystemHandler) KioskCode(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.codes == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if !principal.IsManager() {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	codes, err := h.codes.KioskCodes()
	if err != nil {
		h.log(r.Context(), "KioskCode", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to issue kiosk codes", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]kioskCodeDTO, 0, len(codes))
	for _, code := range codes {
		out = append(out, kioskCodeDTO{
			Kind:       string(code.Kind),
			Payload:    code.Payload,
			ValidUntil: formatTimePtr(code.ValidUntil),
		})
	}
	w.Header().Set("Cache-Control", "no-store")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, kioskResponse{Mode: string(h.codes.Mode()), Codes: out})
}

// Health reports liveness and pings the store with a short deadline.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.log(r.Context(), "Health").ErrorContext(r.Context(), "store ping failed", "error", err)
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{
				Status:  "unavailable",
				Message: translate(LanguageFromContext(r.Context()), "request.unavailable"),
			})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

type kioskCodeDTO struct {
	Kind       string  `json:"kind"`
	Payload    string  `json:"payload"`
	ValidUntil *string `json:"valid_until,omitempty"`
}

type kioskResponse struct {
	Mode  string         `json:"mode"`
	Codes []kioskCodeDTO `json:"codes"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
