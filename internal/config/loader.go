package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFileVariable names an optional dotenv file loaded before parsing.
// Variables already present in the process environment take precedence.
const EnvFileVariable = "POINTAGE_ENV_FILE"

// Config captures environment driven configuration values for the attendance service.
type Config struct {
	HTTPPort   int    `env:"POINTAGE_HTTP_PORT" envDefault:"8080"`
	Storage    string `env:"POINTAGE_STORAGE" envDefault:"sqlite"`
	SQLitePath string `env:"POINTAGE_SQLITE_PATH" envDefault:"pointage.db"`

	SessionSecret string        `env:"POINTAGE_SESSION_SECRET,required"`
	SessionTTL    time.Duration `env:"POINTAGE_SESSION_TTL" envDefault:"24h"`
	CompanyDomain string        `env:"POINTAGE_COMPANY_DOMAIN"`

	Timezone string `env:"POINTAGE_TIMEZONE" envDefault:"Africa/Abidjan"`
	// Location is resolved from Timezone by Load.
	Location *time.Location `env:"-"`

	GeofenceEnabled bool    `env:"POINTAGE_GEOFENCE_ENABLED" envDefault:"true"`
	ZoneLatitude    float64 `env:"POINTAGE_ZONE_LATITUDE" envDefault:"6.8467473"`
	ZoneLongitude   float64 `env:"POINTAGE_ZONE_LONGITUDE" envDefault:"-5.2840243"`
	ZoneTolerance   float64 `env:"POINTAGE_ZONE_TOLERANCE" envDefault:"0.0002"`

	ScanMode       string `env:"POINTAGE_SCAN_MODE" envDefault:"marker"`
	ScanMarker     string `env:"POINTAGE_SCAN_MARKER" envDefault:"Tevia Energie Pass Ok"`
	ScanSite       string `env:"POINTAGE_SCAN_SITE" envDefault:"Bureau principal"`
	ScanTOTPSecret string `env:"POINTAGE_SCAN_TOTP_SECRET"`

	StoreTimeout time.Duration `env:"POINTAGE_STORE_TIMEOUT" envDefault:"5s"`
	HistoryDays  int           `env:"POINTAGE_HISTORY_DAYS" envDefault:"7"`
	CacheTTL     time.Duration `env:"POINTAGE_CACHE_TTL" envDefault:"30s"`

	LogLevel  string `env:"POINTAGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"POINTAGE_LOG_FORMAT" envDefault:"json"`

	BootstrapManagerEmail    string `env:"POINTAGE_BOOTSTRAP_MANAGER_EMAIL"`
	BootstrapManagerPassword string `env:"POINTAGE_BOOTSTRAP_MANAGER_PASSWORD"`
	BootstrapManagerName     string `env:"POINTAGE_BOOTSTRAP_MANAGER_NAME"`
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// BootstrapEnabled reports whether a first manager account should be seeded.
func (c Config) BootstrapEnabled() bool {
	return c.BootstrapManagerEmail != ""
}

// Load parses configuration values from the current process environment.
//
// Defaults come from the struct tags. Missing and invalid variables are
// collected and reported together with localized messages.
func Load() (Config, error) {
	if path := strings.TrimSpace(os.Getenv(EnvFileVariable)); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("impossible de charger le fichier d'environnement %s: %w", path, err)
		}
	}

	var cfg Config
	problems := &report{}
	if err := env.Parse(&cfg); err != nil {
		var aggregate env.AggregateError
		if !errors.As(err, &aggregate) {
			return Config{}, fmt.Errorf("lecture de la configuration impossible: %w", err)
		}
		for _, fieldErr := range aggregate.Errors {
			problems.classify(fieldErr)
		}
	}

	cfg.normalize()
	cfg.validate(problems)

	if len(problems.missing) > 0 {
		return Config{}, fmt.Errorf("variables d'environnement obligatoires manquantes: %s", strings.Join(problems.missing, ", "))
	}
	if len(problems.invalid) > 0 {
		return Config{}, fmt.Errorf("valeurs de variables d'environnement invalides: %s", strings.Join(problems.invalid, ", "))
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.SessionSecret = strings.TrimSpace(c.SessionSecret)
	c.CompanyDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.CompanyDomain), "@"))
	c.Timezone = strings.TrimSpace(c.Timezone)
	c.ScanMode = strings.ToLower(strings.TrimSpace(c.ScanMode))
	c.ScanTOTPSecret = strings.TrimSpace(c.ScanTOTPSecret)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.BootstrapManagerEmail = strings.ToLower(strings.TrimSpace(c.BootstrapManagerEmail))
	c.BootstrapManagerName = strings.TrimSpace(c.BootstrapManagerName)
}

func (c *Config) validate(r *report) {
	if c.SessionSecret == "" {
		r.missingVar("SessionSecret")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		r.invalidVar("HTTPPort")
	}
	switch c.Storage {
	case "sqlite":
		if c.SQLitePath == "" {
			r.missingVar("SQLitePath")
		}
	case "memory":
	default:
		r.invalidVar("Storage")
	}
	if c.SessionTTL <= 0 {
		r.invalidVar("SessionTTL")
	}

	location, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		r.invalidVar("Timezone")
	} else {
		c.Location = location
	}

	if !validCoordinate(c.ZoneLatitude, 90) {
		r.invalidVar("ZoneLatitude")
	}
	if !validCoordinate(c.ZoneLongitude, 180) {
		r.invalidVar("ZoneLongitude")
	}
	if c.ZoneTolerance <= 0 || math.IsNaN(c.ZoneTolerance) {
		r.invalidVar("ZoneTolerance")
	}

	switch c.ScanMode {
	case "marker":
		if strings.TrimSpace(c.ScanMarker) == "" {
			r.invalidVar("ScanMarker")
		}
	case "structured":
	case "totp":
		if c.ScanTOTPSecret == "" {
			r.missingVar("ScanTOTPSecret")
		}
	default:
		r.invalidVar("ScanMode")
	}

	if c.StoreTimeout < 0 {
		r.invalidVar("StoreTimeout")
	}
	if c.HistoryDays <= 0 || c.HistoryDays > 366 {
		r.invalidVar("HistoryDays")
	}
	if c.CacheTTL < 0 {
		r.invalidVar("CacheTTL")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		r.invalidVar("LogLevel")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		r.invalidVar("LogFormat")
	}

	if c.BootstrapManagerEmail != "" && c.BootstrapManagerPassword == "" {
		r.missingVar("BootstrapManagerPassword")
	}
}

func validCoordinate(value, limit float64) bool {
	return !math.IsNaN(value) && value >= -limit && value <= limit
}

type report struct {
	missing []string
	invalid []string
}

func (r *report) classify(err error) {
	var notSet env.EnvVarIsNotSetError
	var empty env.EmptyEnvVarError
	var parse env.ParseError
	switch {
	case errors.As(err, &notSet):
		r.missing = appendUnique(r.missing, notSet.Key)
	case errors.As(err, &empty):
		r.missing = appendUnique(r.missing, empty.Key)
	case errors.As(err, &parse):
		r.invalidVar(parse.Name)
	default:
		r.invalid = appendUnique(r.invalid, err.Error())
	}
}

func (r *report) missingVar(field string) {
	r.missing = appendUnique(r.missing, variableName(field))
}

func (r *report) invalidVar(field string) {
	key := variableName(field)
	for _, missing := range r.missing {
		if missing == key {
			return
		}
	}
	r.invalid = appendUnique(r.invalid, key)
}

// variableName maps a Config field to the environment variable that feeds it.
func variableName(field string) string {
	f, ok := reflect.TypeOf(Config{}).FieldByName(field)
	if !ok {
		return field
	}
	name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
	if name == "" {
		return field
	}
	return name
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
