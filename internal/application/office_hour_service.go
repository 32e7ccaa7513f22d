package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
	"github.com/WilliamHangXu/EasyOH/internal/recurrence"
)

// OfficeHourService lists, expands and directly manages office hour records.
type OfficeHourService struct {
	records            persistence.OfficeHourRepository
	materializer       *officehour.Materializer
	expander           *recurrence.Expander
	suppressExceptions bool
	idGenerator        func() string
	now                func() time.Time
	logger             *slog.Logger
}

// NewOfficeHourService wires dependencies for the office hour service.
// suppressExceptions controls whether Upcoming drops cancelled occurrences.
func NewOfficeHourService(records persistence.OfficeHourRepository, materializer *officehour.Materializer, expander *recurrence.Expander, suppressExceptions bool, idGenerator func() string, now func() time.Time, logger *slog.Logger) *OfficeHourService {
	if materializer == nil {
		materializer = officehour.NewMaterializer(officehour.MaterializerConfig{Now: now})
	}
	if expander == nil {
		expander = recurrence.NewExpander(materializer.Zone(), recurrence.DefaultHorizonMonths)
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &OfficeHourService{
		records:            records,
		materializer:       materializer,
		expander:           expander,
		suppressExceptions: suppressExceptions,
		idGenerator:        idGenerator,
		now:                now,
		logger:             defaultLogger(logger),
	}
}

func (s *OfficeHourService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OfficeHourService", operation, attrs...)
}

// ListRecords returns stored records. An empty ownerID means the principal's own
// records, or every record for instructors.
func (s *OfficeHourService) ListRecords(ctx context.Context, principal Principal, ownerID string) ([]officehour.OfficeHour, error) {
	if s == nil {
		return nil, fmt.Errorf("OfficeHourService is nil")
	}
	filter, err := s.scope(principal, ownerID)
	if err != nil {
		return nil, err
	}
	return s.records.ListOfficeHours(ctx, filter)
}

// Upcoming expands the records ListRecords would return into dated occurrences
// over the horizon. Malformed records are logged and skipped.
func (s *OfficeHourService) Upcoming(ctx context.Context, principal Principal, ownerID string) (occurrences []officehour.OfficeHour, err error) {
	if s == nil {
		err = fmt.Errorf("OfficeHourService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Upcoming", "principal_id", principal.UserID, "owner_id", ownerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to expand office hours", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "office hours expanded", "occurrences", len(occurrences))
	}()

	filter, err := s.scope(principal, ownerID)
	if err != nil {
		return nil, err
	}
	filter.ActiveOwnersOnly = true

	records, err := s.records.ListOfficeHours(ctx, filter)
	if err != nil {
		return nil, err
	}

	expansion := s.expander.Expand(records, s.now(), recurrence.WithExceptionSuppression(s.suppressExceptions))
	for _, malformed := range expansion.Malformed {
		logger.WarnContext(ctx, "skipping malformed office hour", "record_id", malformed.RecordID, "reason", malformed.Reason)
	}
	occurrences = expansion.Occurrences
	return
}

// FeedRecords returns every record owned by an active account. It backs the
// public calendar feed and needs no principal.
func (s *OfficeHourService) FeedRecords(ctx context.Context) ([]officehour.OfficeHour, error) {
	if s == nil {
		return nil, fmt.Errorf("OfficeHourService is nil")
	}
	return s.records.ListOfficeHours(ctx, persistence.OfficeHourFilter{ActiveOwnersOnly: true})
}

// Create stores a record directly, skipping review. Only instructors may do this.
func (s *OfficeHourService) Create(ctx context.Context, principal Principal, req officehour.Request) (record officehour.OfficeHour, err error) {
	if s == nil {
		err = fmt.Errorf("OfficeHourService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Create", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create office hour", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("office_hour_id", record.ID, "recurring", record.IsRecurring).InfoContext(ctx, "office hour created")
	}()

	if err = principal.authenticated(); err != nil {
		return
	}
	if !principal.IsInstructor() {
		err = ErrUnauthorized
		return
	}

	if record, err = s.materializer.Build(principal.Actor(), req); err != nil {
		return
	}
	record.ID = s.idGenerator()
	if err = s.records.CreateOfficeHour(ctx, record); err != nil {
		err = mapRepoError(err)
		record = officehour.OfficeHour{}
	}
	return
}

// Delete removes a record. Instructors may delete any record and TAs their own.
func (s *OfficeHourService) Delete(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("OfficeHourService is nil")
	}
	if _, err := s.loadOwned(ctx, principal, id); err != nil {
		return err
	}
	if err := s.records.DeleteOfficeHour(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.loggerWith(ctx, "Delete", "principal_id", principal.UserID, "office_hour_id", id).InfoContext(ctx, "office hour deleted")
	return nil
}

// CancelOccurrence excludes one date of a recurring record and returns the
// updated record. rawDate is YYYY-MM-DD in the nominal zone.
func (s *OfficeHourService) CancelOccurrence(ctx context.Context, principal Principal, id, rawDate string) (officehour.OfficeHour, error) {
	if s == nil {
		return officehour.OfficeHour{}, fmt.Errorf("OfficeHourService is nil")
	}
	record, err := s.loadOwned(ctx, principal, id)
	if err != nil {
		return officehour.OfficeHour{}, err
	}
	if !record.IsRecurring {
		vErr := &ValidationError{}
		vErr.Add("office_hour_id", "only recurring office hours have occurrences to cancel")
		return officehour.OfficeHour{}, vErr
	}
	day, err := parseOccurrenceDate(rawDate, s.expander.Location())
	if err != nil {
		return officehour.OfficeHour{}, err
	}
	if err := checkOccurrenceWeekday(record, day); err != nil {
		return officehour.OfficeHour{}, err
	}
	if err := s.records.AddException(ctx, id, day); err != nil {
		return officehour.OfficeHour{}, mapRepoError(err)
	}
	s.loggerWith(ctx, "CancelOccurrence", "principal_id", principal.UserID, "office_hour_id", id).
		InfoContext(ctx, "occurrence cancelled", "date", officehour.DateKey(day, s.expander.Location()))

	updated, err := s.records.GetOfficeHour(ctx, id)
	return updated, mapRepoError(err)
}

func (s *OfficeHourService) scope(principal Principal, ownerID string) (persistence.OfficeHourFilter, error) {
	if err := principal.authenticated(); err != nil {
		return persistence.OfficeHourFilter{}, err
	}
	ownerID = strings.TrimSpace(ownerID)
	switch {
	case ownerID == "" && principal.IsInstructor():
		return persistence.OfficeHourFilter{}, nil
	case ownerID == "":
		return persistence.OfficeHourFilter{OwnerIDs: []string{principal.UserID}}, nil
	case !principal.owns(ownerID):
		return persistence.OfficeHourFilter{}, ErrUnauthorized
	}
	return persistence.OfficeHourFilter{OwnerIDs: []string{ownerID}}, nil
}

func (s *OfficeHourService) loadOwned(ctx context.Context, principal Principal, id string) (officehour.OfficeHour, error) {
	if err := principal.authenticated(); err != nil {
		return officehour.OfficeHour{}, err
	}
	record, err := s.records.GetOfficeHour(ctx, id)
	if err != nil {
		return officehour.OfficeHour{}, mapRepoError(err)
	}
	if !principal.owns(record.OwnerID) {
		return officehour.OfficeHour{}, ErrUnauthorized
	}
	return record, nil
}

func parseOccurrenceDate(raw string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		vErr := &ValidationError{}
		vErr.Add(officehour.FieldDate, "date must be YYYY-MM-DD")
		return time.Time{}, vErr
	}
	return day, nil
}

func checkOccurrenceWeekday(record officehour.OfficeHour, day time.Time) error {
	weekday, ok := record.Weekday()
	if !ok || day.Weekday() == weekday {
		return nil
	}
	vErr := &ValidationError{}
	vErr.Add(officehour.FieldDate, fmt.Sprintf("date is a %s, office hour meets on %s", day.Weekday(), weekday))
	return vErr
}
