package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// unsetAll removes every POINTAGE_ variable for the duration of the test.
func unsetAll(t *testing.T) {
	t.Helper()
	for _, entry := range os.Environ() {
		key, value, _ := strings.Cut(entry, "=")
		if !strings.HasPrefix(key, "POINTAGE_") {
			continue
		}
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
		t.Cleanup(func() { os.Setenv(key, value) })
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unsetAll(t)
		const secret = "super-secret"
		t.Setenv("POINTAGE_SESSION_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != "sqlite" || cfg.SQLitePath != "pointage.db" {
			t.Fatalf("unexpected default storage: %q %q", cfg.Storage, cfg.SQLitePath)
		}
		if cfg.SessionSecret != secret {
			t.Fatalf("expected session secret to be %q, got %q", secret, cfg.SessionSecret)
		}
		if cfg.SessionTTL != 24*time.Hour || cfg.StoreTimeout != 5*time.Second {
			t.Fatalf("unexpected default durations: %s %s", cfg.SessionTTL, cfg.StoreTimeout)
		}
		if !cfg.GeofenceEnabled || cfg.ZoneLatitude != 6.8467473 || cfg.ZoneLongitude != -5.2840243 || cfg.ZoneTolerance != 0.0002 {
			t.Fatalf("unexpected default zone: %#v", cfg)
		}
		if cfg.ScanMode != "marker" || cfg.ScanMarker != "Tevia Energie Pass Ok" {
			t.Fatalf("unexpected default scan settings: %q %q", cfg.ScanMode, cfg.ScanMarker)
		}
		if cfg.Location == nil || cfg.Location.String() != "Africa/Abidjan" {
			t.Fatalf("expected Africa/Abidjan location, got %v", cfg.Location)
		}
		if cfg.HistoryDays != 7 || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected defaults: %d %q %q", cfg.HistoryDays, cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.BootstrapEnabled() {
			t.Fatalf("expected bootstrap to be disabled by default")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		unsetAll(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "variables d'environnement obligatoires manquantes: POINTAGE_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("treats a blank secret as missing", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("POINTAGE_SESSION_SECRET", "   ")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "POINTAGE_SESSION_SECRET") {
			t.Fatalf("expected missing secret error, got %v", err)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("POINTAGE_SESSION_SECRET", "secret-value")
		t.Setenv("POINTAGE_HTTP_PORT", "9090")
		t.Setenv("POINTAGE_STORAGE", "MEMORY")
		t.Setenv("POINTAGE_SESSION_TTL", "12h")
		t.Setenv("POINTAGE_TIMEZONE", "Europe/Paris")
		t.Setenv("POINTAGE_GEOFENCE_ENABLED", "false")
		t.Setenv("POINTAGE_ZONE_TOLERANCE", "0.001")
		t.Setenv("POINTAGE_HISTORY_DAYS", "30")
		t.Setenv("POINTAGE_COMPANY_DOMAIN", "@Tevia.ci")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != "memory" {
			t.Fatalf("expected memory storage, got %q", cfg.Storage)
		}
		if cfg.GeofenceEnabled || cfg.ZoneTolerance != 0.001 || cfg.HistoryDays != 30 {
			t.Fatalf("unexpected parsed values: %#v", cfg)
		}
		if cfg.Location.String() != "Europe/Paris" {
			t.Fatalf("expected Europe/Paris, got %s", cfg.Location)
		}
		if cfg.CompanyDomain != "tevia.ci" {
			t.Fatalf("expected normalized domain, got %q", cfg.CompanyDomain)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("POINTAGE_SESSION_SECRET", "secret-value")
		t.Setenv("POINTAGE_HTTP_PORT", "not-a-port")
		t.Setenv("POINTAGE_SESSION_TTL", "-1h")
		t.Setenv("POINTAGE_TIMEZONE", "Mars/Olympus")
		t.Setenv("POINTAGE_SCAN_MODE", "laser")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"POINTAGE_HTTP_PORT", "POINTAGE_SESSION_TTL", "POINTAGE_TIMEZONE", "POINTAGE_SCAN_MODE"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
		if !strings.HasPrefix(err.Error(), "valeurs de variables d'environnement invalides: ") {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("requires a secret in totp mode", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("POINTAGE_SESSION_SECRET", "secret-value")
		t.Setenv("POINTAGE_SCAN_MODE", "totp")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "POINTAGE_SCAN_TOTP_SECRET") {
			t.Fatalf("expected missing TOTP secret, got %v", err)
		}
	})

	t.Run("requires a password for the bootstrap manager", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("POINTAGE_SESSION_SECRET", "secret-value")
		t.Setenv("POINTAGE_BOOTSTRAP_MANAGER_EMAIL", "Admin@Tevia.ci")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "POINTAGE_BOOTSTRAP_MANAGER_PASSWORD") {
			t.Fatalf("expected missing bootstrap password, got %v", err)
		}

		t.Setenv("POINTAGE_BOOTSTRAP_MANAGER_PASSWORD", "changeme123")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if !cfg.BootstrapEnabled() || cfg.BootstrapManagerEmail != "admin@tevia.ci" {
			t.Fatalf("unexpected bootstrap settings: %#v", cfg)
		}
	})

	t.Run("loads a dotenv file without overriding the environment", func(t *testing.T) {
		unsetAll(t)
		path := filepath.Join(t.TempDir(), "pointage.env")
		content := "POINTAGE_SESSION_SECRET=from-file\nPOINTAGE_HTTP_PORT=7070\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvFileVariable, path)
		t.Setenv("POINTAGE_HTTP_PORT", "6060")
		t.Cleanup(func() { os.Unsetenv("POINTAGE_SESSION_SECRET") })

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.SessionSecret != "from-file" {
			t.Fatalf("expected secret from file, got %q", cfg.SessionSecret)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected process environment to win, got %d", cfg.HTTPPort)
		}
	})

	t.Run("fails on a missing dotenv file", func(t *testing.T) {
		unsetAll(t)
		t.Setenv(EnvFileVariable, filepath.Join(t.TempDir(), "absent.env"))

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing env file")
		}
	})
}
