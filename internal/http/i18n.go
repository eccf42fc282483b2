package http

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/attendance"
)

// langParam selects the response language explicitly.
const langParam = "lang"

var (
	defaultLanguage    = language.French
	supportedLanguages = []language.Tag{language.French, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

// resolveLanguage picks the response language from the lang query parameter,
// then Accept-Language, defaulting to French.
func resolveLanguage(r *http.Request) language.Tag {
	if r == nil {
		return defaultLanguage
	}
	var candidates []language.Tag
	if value := strings.TrimSpace(r.URL.Query().Get(langParam)); value != "" {
		if tag, err := language.Parse(value); err == nil {
			candidates = append(candidates, tag)
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			candidates = append(candidates, tags...)
		}
	}
	if len(candidates) == 0 {
		return defaultLanguage
	}
	_, index, confidence := languageMatcher.Match(candidates...)
	if confidence == language.No {
		return defaultLanguage
	}
	return supportedLanguages[index]
}

func printerFor(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// translate returns the catalog entry for key, or key itself when unknown.
func translate(tag language.Tag, key string) string {
	return printerFor(tag).Sprintf(key)
}

func init() {
	for key, texts := range catalogEntries() {
		if err := message.SetString(language.French, key, texts[0]); err != nil {
			panic(fmt.Sprintf("register %s: %v", key, err))
		}
		if err := message.SetString(language.English, key, texts[1]); err != nil {
			panic(fmt.Sprintf("register %s: %v", key, err))
		}
	}
}

// catalogEntries maps message keys to their French and English texts.
// Validation messages are keyed by the text the services produce.
func catalogEntries() map[string][2]string {
	entries := map[string][2]string{
		"error.invalid_payload":     {"QR code invalide.", "Invalid QR code."},
		"error.out_of_zone":         {"Vous n'êtes pas dans la zone autorisée.", "You are outside the authorized zone."},
		"error.permission_denied":   {"Autorisez l'accès à votre position pour pointer.", "Location access is required to scan."},
		"error.already_exists":      {"Un pointage existe déjà pour cette journée.", "An attendance record already exists for this day."},
		"error.already_closed":      {"Votre journée est déjà clôturée.", "Your day is already closed."},
		"error.already_validated":   {"Ce pointage a déjà été validé.", "This record has already been validated."},
		"error.record_open":         {"Ce pointage n'a pas encore de sortie.", "This record has no exit yet."},
		"error.user_has_records":    {"Cet utilisateur possède des pointages et ne peut pas être supprimé.", "This user has attendance records and cannot be deleted."},
		"error.not_found":           {"La ressource demandée est introuvable.", "The requested resource was not found."},
		"error.unauthorized":        {"Vous n'avez pas les droits pour cette opération.", "You are not allowed to perform this operation."},
		"error.invalid_credentials": {"Adresse e-mail ou mot de passe incorrect.", "Incorrect e-mail address or password."},
		"error.session_expired":     {"Votre session a expiré. Veuillez vous reconnecter.", "Your session has expired. Please sign in again."},
		"error.session_revoked":     {"Votre session a été fermée. Veuillez vous reconnecter.", "Your session was closed. Please sign in again."},
		"error.validation":          {"Les données saisies sont invalides.", "The submitted data is invalid."},
		"error.timeout":             {"Le service est momentanément indisponible.", "The service is temporarily unavailable."},
		"error.canceled":            {"La requête a été annulée.", "The request was canceled."},
		"error.unexpected":          {"Une erreur interne est survenue.", "An internal error occurred."},

		"request.bad_body":      {"Format de requête invalide.", "Invalid request format."},
		"request.missing_token": {"Veuillez fournir un jeton d'authentification.", "An authentication token is required."},
		"request.invalid_id":    {"Identifiant invalide.", "Invalid identifier."},
		"request.invalid_days":  {"Le nombre de jours doit être un entier positif.", "days must be a positive integer."},
		"request.invalid_since": {"La date de début doit être au format AAAA-MM-JJ.", "since must be a YYYY-MM-DD date."},
		"request.unavailable":   {"Le service de stockage est indisponible.", "The storage service is unavailable."},

		"status.400": {"La requête est invalide.", "The request is invalid."},
		"status.401": {"Authentification requise.", "Authentication required."},
		"status.403": {"Accès refusé.", "Access denied."},
		"status.404": {"Ressource introuvable.", "Resource not found."},
		"status.409": {"Conflit avec l'état actuel de la ressource.", "Conflict with the current state of the resource."},
		"status.422": {"Les données saisies sont invalides.", "The submitted data is invalid."},
		"status.500": {"Une erreur interne est survenue.", "An internal error occurred."},

		"exit time must be after entry time":           {"L'heure de sortie doit suivre l'heure d'entrée.", "exit time must be after entry time"},
		"coordinates are out of range":                 {"Les coordonnées sont hors limites.", "coordinates are out of range"},
		"filter must be all, pending or validated":     {"Le filtre doit être all, pending ou validated.", "filter must be all, pending or validated"},
		"comment is required":                          {"Le commentaire est obligatoire.", "comment is required"},
		"record violates a storage constraint":         {"Le pointage ne respecte pas les contraintes de stockage.", "record violates a storage constraint"},
		"email must belong to the company domain":      {"L'adresse e-mail doit appartenir au domaine de l'entreprise.", "email must belong to the company domain"},
		"managers cannot delete their own account":     {"Un responsable ne peut pas supprimer son propre compte.", "managers cannot delete their own account"},
		"email is required":                            {"L'adresse e-mail est obligatoire.", "email is required"},
		"email is invalid":                             {"L'adresse e-mail est invalide.", "email is invalid"},
		"display name is required":                     {"Le nom affiché est obligatoire.", "display name is required"},
		"role must be employee or manager":             {"Le rôle doit être employee ou manager.", "role must be employee or manager"},
		"password is required":                         {"Le mot de passe est obligatoire.", "password is required"},
		"user violates a storage constraint":           {"L'utilisateur ne respecte pas les contraintes de stockage.", "user violates a storage constraint"},

		"latitude and longitude must be provided together": {"La latitude et la longitude doivent être fournies ensemble.", "latitude and longitude must be provided together"},
	}

	entries[fmt.Sprintf("days must not exceed %d", application.MaxHistoryDays)] = [2]string{
		fmt.Sprintf("Le nombre de jours ne doit pas dépasser %d.", application.MaxHistoryDays),
		fmt.Sprintf("days must not exceed %d", application.MaxHistoryDays),
	}
	entries[fmt.Sprintf("comment must be at most %d characters", application.MaxCommentLength)] = [2]string{
		fmt.Sprintf("Le commentaire ne doit pas dépasser %d caractères.", application.MaxCommentLength),
		fmt.Sprintf("comment must be at most %d characters", application.MaxCommentLength),
	}
	entries[fmt.Sprintf("password must be at least %d characters", application.MinPasswordLength)] = [2]string{
		fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères.", application.MinPasswordLength),
		fmt.Sprintf("password must be at least %d characters", application.MinPasswordLength),
	}

	english := map[attendance.Status]string{
		attendance.StatusNotScanned: "Not scanned",
		attendance.StatusPresent:    "Present",
		attendance.StatusCheckedOut: "Checked out",
		attendance.StatusPending:    "Pending",
		attendance.StatusModified:   "Modified",
		attendance.StatusValidated:  "Validated",
	}
	for status, label := range english {
		entries["record_status."+string(status)] = [2]string{status.Label(), label}
	}
	return entries
}

func statusLabel(tag language.Tag, status attendance.Status) string {
	return translate(tag, "record_status."+string(status))
}
