package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/scan"
)

// TestSessionSecret signs session tokens issued by factory built auth services.
const TestSessionSecret = "testfixtures-session-secret"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users         application.UserRepository
	Hasher        application.PasswordHasher
	CompanyDomain string
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewUserServiceWithLogger(
		deps.Users,
		deps.Hasher,
		idGen,
		now,
		application.UserSettings{CompanyDomain: deps.CompanyDomain},
		deps.Logger,
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	Signer         application.TokenSigner
	PasswordVerify application.PasswordVerifier
	IDGenerator    func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service. A JWT signer keyed with
// TestSessionSecret is used when deps.Signer is nil.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) (*application.AuthService, error) {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	signer := deps.Signer
	if signer == nil {
		jwtSigner, err := application.NewJWTSigner(TestSessionSecret)
		if err != nil {
			return nil, err
		}
		signer = jwtSigner
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		signer,
		deps.PasswordVerify,
		idGen,
		now,
		application.AuthSettings{SessionTTL: ttl},
		deps.Logger,
	), nil
}

// AttendanceServiceDeps captures dependencies for constructing an attendance service.
type AttendanceServiceDeps struct {
	Records application.RecordRepository
	Roles   application.RoleResolver
	// Decoder defaults to a marker decoder reading the factory clock.
	Decoder     application.PayloadDecoder
	Settings    application.AttendanceSettings
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewAttendanceService builds an attendance service. Zero settings get the
// office zone with geofencing enabled and UTC as business time zone.
func (f *ServiceFactory) NewAttendanceService(deps AttendanceServiceDeps) (*application.AttendanceService, error) {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	decoder := deps.Decoder
	if decoder == nil {
		d, err := scan.NewDecoder(scan.Options{Mode: scan.ModeMarker, Now: now})
		if err != nil {
			return nil, err
		}
		decoder = d
	}
	settings := deps.Settings
	if settings.Zone.Tolerance == 0 {
		settings.Zone = geofence.NewZone(OfficePoint, geofence.DefaultTolerance)
		settings.GeofenceEnabled = true
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return application.NewAttendanceServiceWithLogger(
		deps.Records,
		deps.Roles,
		decoder,
		idGen,
		now,
		settings,
		deps.Logger,
	), nil
}
