package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/recurrence"
)

// FastArgon2idParams keeps password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock              *Clock
	IDGenerator        *IDGenerator
	Zone               *time.Location
	SuppressExceptions bool
	Logger             *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: ReferenceTime,
// "id-<n>" identifiers, UTC and exception suppression on.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:              NewClock(time.Time{}),
		IDGenerator:        NewIDGenerator("id"),
		Zone:               time.UTC,
		SuppressExceptions: true,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
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
	if factory.Zone == nil {
		factory.Zone = time.UTC
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

// WithZone overrides the nominal zone.
func WithZone(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Zone = loc
	}
}

// WithExceptionSuppression toggles whether Upcoming drops cancelled occurrences.
func WithExceptionSuppression(enabled bool) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.SuppressExceptions = enabled
	}
}

// Services bundles every application service over one store.
type Services struct {
	Auth           *application.AuthService
	Roster         *application.RosterService
	OfficeHours    *application.OfficeHourService
	ChangeRequests *application.ChangeRequestService
}

// Materializer returns a materializer using the factory clock and zone.
func (f *ServiceFactory) Materializer() *officehour.Materializer {
	return officehour.NewMaterializer(officehour.MaterializerConfig{
		Zone: f.Zone,
		Now:  f.Clock.NowFunc(),
	})
}

// Build wires all services to harness.
func (f *ServiceFactory) Build(harness *SQLiteHarness) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	materializer := f.Materializer()
	expander := recurrence.NewExpander(f.Zone, recurrence.DefaultHorizonMonths)

	roster := application.NewRosterService(harness.Users, harness.AuthorizedEmails, now, f.Logger)
	return Services{
		Auth: application.NewAuthService(
			harness.Users,
			harness.AuthorizedEmails,
			harness.Sessions,
			application.Argon2idHasher(FastArgon2idParams),
			ids,
			now,
			time.Hour,
			f.Logger,
		),
		Roster:      roster,
		OfficeHours: application.NewOfficeHourService(harness.OfficeHours, materializer, expander, f.SuppressExceptions, ids, now, f.Logger),
		ChangeRequests: application.NewChangeRequestService(
			harness.ChangeRequests,
			harness.OfficeHours,
			harness.Store,
			materializer,
			roster,
			ids,
			now,
			f.Logger,
		),
	}
}
