package officehour

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Actor is the signed-in user submitting a form.
type Actor struct {
	UserID string
	Email  string
}

func (a Actor) validate() error {
	var missing []string
	if strings.TrimSpace(a.UserID) == "" {
		missing = append(missing, "user id")
	}
	if strings.TrimSpace(a.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &UnauthenticatedError{Missing: missing}
	}
	return nil
}

// DisplayNameLookup resolves the name shown to instructors for a requester.
type DisplayNameLookup interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// DisplayNameFunc adapts a function to DisplayNameLookup.
type DisplayNameFunc func(ctx context.Context, userID string) (string, error)

// DisplayName implements DisplayNameLookup.
func (f DisplayNameFunc) DisplayName(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// MaterializerConfig tunes a Materializer.
type MaterializerConfig struct {
	// Zone is the nominal zone dates and clock times are composed in. Defaults to UTC.
	Zone            *time.Location
	DefaultLocation string
	MinDuration     time.Duration
	Now             func() time.Time
}

// Materializer turns submission forms into pending change requests.
type Materializer struct {
	zone            *time.Location
	defaultLocation string
	minDuration     time.Duration
	now             func() time.Time
}

// NewMaterializer builds a Materializer, filling zero config values with defaults.
func NewMaterializer(cfg MaterializerConfig) *Materializer {
	m := &Materializer{
		zone:            cfg.Zone,
		defaultLocation: cfg.DefaultLocation,
		minDuration:     cfg.MinDuration,
		now:             cfg.Now,
	}
	if m.zone == nil {
		m.zone = time.UTC
	}
	if strings.TrimSpace(m.defaultLocation) == "" {
		m.defaultLocation = DefaultLocation
	}
	if m.minDuration <= 0 {
		m.minDuration = DefaultMinDuration
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Zone returns the nominal zone used for composition.
func (m *Materializer) Zone() *time.Location {
	return m.zone
}

// Materialize builds a pending create request from a submission.
func (m *Materializer) Materialize(ctx context.Context, actor Actor, names DisplayNameLookup, req Request) (ChangeRequest, error) {
	if err := actor.validate(); err != nil {
		return ChangeRequest{}, err
	}
	primary, err := m.Build(actor, req)
	if err != nil {
		return ChangeRequest{}, err
	}
	name, err := m.requesterName(ctx, actor, names)
	if err != nil {
		return ChangeRequest{}, err
	}
	return ChangeRequest{
		RequesterID:   actor.UserID,
		RequesterName: name,
		Operation:     OperationCreate,
		PrimaryOH:     primary,
		Note:          req.note().OrElse(""),
		Status:        StatusPending,
		SubmittedAt:   m.now(),
	}, nil
}

// MaterializeEdit builds a pending request replacing one occurrence of target with
// the slot described by req.
func (m *Materializer) MaterializeEdit(ctx context.Context, actor Actor, names DisplayNameLookup, target OfficeHour, occurrence time.Time, req TemporaryRequest) (ChangeRequest, error) {
	if err := actor.validate(); err != nil {
		return ChangeRequest{}, err
	}
	if err := m.checkTarget(target, occurrence); err != nil {
		return ChangeRequest{}, err
	}
	primary, err := m.Build(actor, req)
	if err != nil {
		return ChangeRequest{}, err
	}
	// The replacement slot stays with the target's owner.
	if target.OwnerID != "" {
		primary.OwnerID = target.OwnerID
		primary.CreatedByEmail = target.CreatedByEmail
	}
	name, err := m.requesterName(ctx, actor, names)
	if err != nil {
		return ChangeRequest{}, err
	}
	return ChangeRequest{
		RequesterID:   actor.UserID,
		RequesterName: name,
		Operation:     OperationEdit,
		PrimaryOH:     primary,
		TargetID:      target.ID,
		TargetDate:    StartOfDay(occurrence, m.zone),
		Note:          req.Note.OrElse(""),
		Status:        StatusPending,
		SubmittedAt:   m.now(),
	}, nil
}

// MaterializeDelete builds a pending request removing one occurrence of target,
// or the whole record when target is one-time.
func (m *Materializer) MaterializeDelete(ctx context.Context, actor Actor, names DisplayNameLookup, target OfficeHour, occurrence time.Time, note string) (ChangeRequest, error) {
	if err := actor.validate(); err != nil {
		return ChangeRequest{}, err
	}
	if err := m.checkTarget(target, occurrence); err != nil {
		return ChangeRequest{}, err
	}
	name, err := m.requesterName(ctx, actor, names)
	if err != nil {
		return ChangeRequest{}, err
	}
	day := StartOfDay(occurrence, m.zone)
	primary := target.Clone()
	if target.IsRecurring {
		primary.TmpDate = day
		if start, end, ok := target.ComposeSlot(day, m.zone); ok {
			primary.TmpStartTime, primary.TmpEndTime = start, end
		}
	}
	return ChangeRequest{
		RequesterID:   actor.UserID,
		RequesterName: name,
		Operation:     OperationDelete,
		PrimaryOH:     primary,
		TargetID:      target.ID,
		TargetDate:    day,
		Note:          strings.TrimSpace(note),
		Status:        StatusPending,
		SubmittedAt:   m.now(),
	}, nil
}

// Build validates req and returns the office hour it describes, owned by actor.
// The returned record has no ID.
func (m *Materializer) Build(actor Actor, req Request) (OfficeHour, error) {
	vErr := &ValidationError{}
	if req == nil {
		vErr.Add(FieldType, "office hour type is required")
		return OfficeHour{}, vErr
	}

	rawStart, rawEnd := req.times()
	startClock, endClock := m.validateTimes(rawStart, rawEnd, vErr)

	oh := OfficeHour{
		OwnerID:        actor.UserID,
		CreatedByEmail: actor.Email,
		CreatedAt:      m.now(),
		StartTime:      strings.TrimSpace(rawStart),
		EndTime:        strings.TrimSpace(rawEnd),
		Location:       req.location().OrElse(m.defaultLocation),
	}
	if strings.TrimSpace(oh.Location) == "" {
		oh.Location = m.defaultLocation
	}

	switch r := req.(type) {
	case TemporaryRequest:
		date, ok := m.parseDate(r.Date, vErr)
		if vErr.HasErrors() || !ok {
			return OfficeHour{}, vErr
		}
		oh.IsRecurring = false
		oh.DayOfWeek = NoDay
		oh.TmpDate = date
		oh.TmpStartTime = startClock.On(date, m.zone)
		oh.TmpEndTime = endClock.On(date, m.zone)
	case RecurringRequest:
		if r.DayOfWeek < int(time.Sunday) || r.DayOfWeek > int(time.Saturday) {
			vErr.Add(FieldDayOfWeek, "day of week must be an integer between 0 and 6")
		}
		if vErr.HasErrors() {
			return OfficeHour{}, vErr
		}
		oh.IsRecurring = true
		oh.DayOfWeek = r.DayOfWeek
		oh.DTStart = startClock.On(m.now(), m.zone)
		oh.Exceptions = []time.Time{}
	default:
		vErr.Add(FieldType, fmt.Sprintf("unsupported office hour type %q", req.Kind()))
		return OfficeHour{}, vErr
	}
	return oh, nil
}

func (m *Materializer) validateTimes(rawStart, rawEnd string, vErr *ValidationError) (ClockTime, ClockTime) {
	var start, end ClockTime
	var startOK, endOK bool
	if strings.TrimSpace(rawStart) == "" {
		vErr.Add(FieldStartTime, "start time is required")
	} else if parsed, err := ParseClock(rawStart); err != nil {
		vErr.Add(FieldStartTime, "start time must be HH:mm")
	} else {
		start, startOK = parsed, true
	}
	if strings.TrimSpace(rawEnd) == "" {
		vErr.Add(FieldEndTime, "end time is required")
	} else if parsed, err := ParseClock(rawEnd); err != nil {
		vErr.Add(FieldEndTime, "end time must be HH:mm")
	} else {
		end, endOK = parsed, true
	}
	if startOK && endOK {
		switch {
		case end <= start:
			vErr.Add(FieldTime, "start time must be before end time")
		case end.Sub(start) < m.minDuration:
			vErr.Add(FieldTime, fmt.Sprintf("office hours must be at least %d minutes long", int(m.minDuration/time.Minute)))
		}
	}
	return start, end
}

func (m *Materializer) parseDate(raw string, vErr *ValidationError) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		vErr.Add(FieldDate, "date is required")
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		stamp, stampErr := time.Parse(time.RFC3339Nano, value)
		if stampErr != nil {
			vErr.Add(FieldDate, "date must be YYYY-MM-DD")
			return time.Time{}, false
		}
		parsed = stamp
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, m.zone), true
}

func (m *Materializer) checkTarget(target OfficeHour, occurrence time.Time) error {
	if strings.TrimSpace(target.ID) == "" {
		return &MalformedRecordError{Reason: "target office hour has no id"}
	}
	if occurrence.IsZero() {
		vErr := &ValidationError{}
		vErr.Add(FieldDate, "occurrence date is required")
		return vErr
	}
	if target.IsRecurring && target.HasException(occurrence, m.zone) {
		vErr := &ValidationError{}
		vErr.Add(FieldDate, "occurrence is already cancelled")
		return vErr
	}
	return nil
}

func (m *Materializer) requesterName(ctx context.Context, actor Actor, names DisplayNameLookup) (string, error) {
	if names == nil {
		return actor.Email, nil
	}
	name, err := names.DisplayName(ctx, actor.UserID)
	if err != nil {
		return "", fmt.Errorf("resolve requester name: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return actor.Email, nil
	}
	return name, nil
}
