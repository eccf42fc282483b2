package http

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	recordIDContextKey  contextKey = "record_id"
	userIDContextKey    contextKey = "user_id"
	languageContextKey  contextKey = "language"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithRecordID injects the record identifier resolved from the request path.
func ContextWithRecordID(ctx context.Context, recordID string) context.Context {
	return context.WithValue(ctx, recordIDContextKey, recordID)
}

// RecordIDFromContext extracts a record identifier previously associated with the context.
func RecordIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(recordIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithLanguage records the response language negotiated for the request.
func ContextWithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, languageContextKey, tag)
}

// LanguageFromContext returns the negotiated language, French when none was set.
func LanguageFromContext(ctx context.Context) language.Tag {
	if ctx == nil {
		return defaultLanguage
	}
	if tag, ok := ctx.Value(languageContextKey).(language.Tag); ok {
		return tag
	}
	return defaultLanguage
}

// ContextWithLogger attaches the request logger; services read it back too.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
