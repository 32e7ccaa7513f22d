// Package recurrence expands stored office hours into dated occurrences.
package recurrence

import (
	"errors"
	"sort"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

// DefaultHorizonMonths is how far past the reference day recurring records are expanded.
const DefaultHorizonMonths = 2

// Expander turns weekly recurring records into one occurrence per matching day
// inside the horizon and passes one-time records through.
type Expander struct {
	location      *time.Location
	horizonMonths int
}

// NewExpander constructs an Expander that computes calendar days in loc.
// A nil loc means UTC and a non-positive horizon means DefaultHorizonMonths.
func NewExpander(loc *time.Location, horizonMonths int) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	if horizonMonths <= 0 {
		horizonMonths = DefaultHorizonMonths
	}
	return &Expander{location: loc, horizonMonths: horizonMonths}
}

// Location returns the zone calendar days are computed in.
func (e *Expander) Location() *time.Location {
	return e.location
}

// Option adjusts a single Expand call.
type Option func(*expandOptions)

type expandOptions struct {
	suppressExceptions bool
	clipOneTime        bool
}

// WithExceptions drops recurring occurrences whose date is listed in the record's exceptions.
func WithExceptions() Option {
	return WithExceptionSuppression(true)
}

// WithExceptionSuppression toggles exception filtering, for callers driven by configuration.
func WithExceptionSuppression(enabled bool) Option {
	return func(o *expandOptions) { o.suppressExceptions = enabled }
}

// WithinHorizon also drops one-time records whose date falls outside the horizon.
func WithinHorizon() Option {
	return func(o *expandOptions) { o.clipOneTime = true }
}

// Expansion is the result of expanding a record list.
type Expansion struct {
	Occurrences []officehour.OfficeHour
	Malformed   []*officehour.MalformedRecordError
}

// Err joins the malformed record errors, or returns nil when every record was usable.
func (x Expansion) Err() error {
	if len(x.Malformed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(x.Malformed))
	for _, m := range x.Malformed {
		errs = append(errs, m)
	}
	return errors.Join(errs...)
}

// Horizon returns the half-open window [start, end) used for a reference instant.
func (e *Expander) Horizon(reference time.Time) (time.Time, time.Time) {
	start := officehour.StartOfDay(reference, e.location)
	return start, reference.In(e.location).AddDate(0, e.horizonMonths, 0)
}

// Expand produces the occurrence list for records as seen at reference.
//
// Every recurring record yields a copy per day in the horizon whose weekday equals
// its DayOfWeek; the copy keeps the source ID and gains TmpDate, TmpStartTime and
// TmpEndTime. One-time records are emitted unchanged. The result is ordered by
// TmpDate; records on the same date keep their input order. Records that fail
// validation are skipped and reported in Malformed.
func (e *Expander) Expand(records []officehour.OfficeHour, reference time.Time, opts ...Option) Expansion {
	var options expandOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	start, end := e.Horizon(reference)
	result := Expansion{Occurrences: make([]officehour.OfficeHour, 0, len(records))}

	for _, record := range records {
		if err := record.Validate(); err != nil {
			var malformed *officehour.MalformedRecordError
			if errors.As(err, &malformed) {
				result.Malformed = append(result.Malformed, malformed)
			}
			continue
		}

		if !record.IsRecurring {
			if options.clipOneTime && !withinWindow(record.TmpDate, start, end) {
				continue
			}
			result.Occurrences = append(result.Occurrences, record)
			continue
		}

		result.Occurrences = append(result.Occurrences, e.expandRecurring(record, start, end)...)
	}

	if options.suppressExceptions {
		result.Occurrences = FilterExceptions(result.Occurrences, e.location)
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].TmpDate.Before(result.Occurrences[j].TmpDate)
	})
	return result
}

func (e *Expander) expandRecurring(record officehour.OfficeHour, start, end time.Time) []officehour.OfficeHour {
	weekday, ok := record.Weekday()
	if !ok {
		return nil
	}

	occurrences := make([]officehour.OfficeHour, 0, 10)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() != weekday {
			continue
		}
		occurrence := record
		occurrence.TmpDate = day
		if slotStart, slotEnd, ok := record.ComposeSlot(day, e.location); ok {
			occurrence.TmpStartTime = slotStart
			occurrence.TmpEndTime = slotEnd
		}
		occurrences = append(occurrences, occurrence)
	}
	return occurrences
}

// FilterExceptions removes recurring occurrences that fall on an excluded date.
// One-time entries are kept.
func FilterExceptions(occurrences []officehour.OfficeHour, loc *time.Location) []officehour.OfficeHour {
	filtered := occurrences[:0:0]
	for _, occurrence := range occurrences {
		if occurrence.IsRecurring && occurrence.HasException(occurrence.TmpDate, loc) {
			continue
		}
		filtered = append(filtered, occurrence)
	}
	return filtered
}

func withinWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
