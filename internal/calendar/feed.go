// Package calendar renders office hour records as an iCalendar feed that
// calendar clients and web embeds can subscribe to.
package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/WilliamHangXu/EasyOH/internal/logging"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

const (
	// DefaultName is the X-WR-CALNAME used when none is configured.
	DefaultName = "Office Hours"
	productID   = "-//EasyOH//Office Hours//EN"
	uidDomain   = "easyoh"
	exdateUTC   = "20060102T150405Z"
)

var weekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// FeedConfig tunes a Feed.
type FeedConfig struct {
	Name string
	// Zone is the nominal zone record clock times are read in. Defaults to UTC.
	Zone   *time.Location
	Now    func() time.Time
	Logger *slog.Logger
}

// Feed builds VCALENDAR documents from stored records. Recurring records become
// one VEVENT with a weekly RRULE and an EXDATE per cancelled date; one-time
// records become a single VEVENT.
type Feed struct {
	name   string
	zone   *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewFeed constructs a Feed, filling zero config values with defaults.
func NewFeed(cfg FeedConfig) *Feed {
	f := &Feed{name: cfg.Name, zone: cfg.Zone, now: cfg.Now, logger: cfg.Logger}
	if strings.TrimSpace(f.name) == "" {
		f.name = DefaultName
	}
	if f.zone == nil {
		f.zone = time.UTC
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Build returns the calendar for records. names supplies event titles and may
// be nil. Records that cannot be rendered are logged and left out.
func (f *Feed) Build(ctx context.Context, records []officehour.OfficeHour, names officehour.DisplayNameLookup) *ics.Calendar {
	logger := logging.OrDefault(ctx, f.logger)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(f.name)

	stamp := f.now()
	titles := make(map[string]string)
	for _, record := range records {
		if err := f.addEvent(ctx, cal, record, stamp, titles, names); err != nil {
			logger.WarnContext(ctx, "skipping office hour in calendar feed", "record_id", record.ID, "error", err)
		}
	}
	return cal
}

// Write serializes the calendar for records to w.
func (f *Feed) Write(ctx context.Context, w io.Writer, records []officehour.OfficeHour, names officehour.DisplayNameLookup) error {
	return f.Build(ctx, records, names).SerializeTo(w)
}

func (f *Feed) addEvent(ctx context.Context, cal *ics.Calendar, record officehour.OfficeHour, stamp time.Time, titles map[string]string, names officehour.DisplayNameLookup) error {
	if err := record.Validate(); err != nil {
		return err
	}

	var start, end time.Time
	var rule string
	if record.IsRecurring {
		var err error
		if start, end, rule, err = f.weeklySlot(record); err != nil {
			return err
		}
	} else {
		start, end = record.TmpStartTime, record.TmpEndTime
		if start.IsZero() || end.IsZero() {
			var ok bool
			if start, end, ok = record.ComposeSlot(record.TmpDate, f.zone); !ok {
				return &officehour.MalformedRecordError{RecordID: record.ID, Reason: "one-time slot has no usable times"}
			}
		}
	}

	event := cal.AddEvent(fmt.Sprintf("%s@%s", record.ID, uidDomain))
	event.SetDtStampTime(stamp)
	if !record.CreatedAt.IsZero() {
		event.SetCreatedTime(record.CreatedAt)
	}
	event.SetStartAt(start)
	event.SetEndAt(end)
	event.SetSummary("Office hours: " + f.ownerTitle(ctx, record, titles, names))
	if record.Location != "" {
		event.SetLocation(record.Location)
	}

	if rule != "" {
		event.AddRrule(rule)
		for _, excluded := range record.Exceptions {
			if slotStart, _, ok := record.ComposeSlot(excluded, f.zone); ok {
				event.AddExdate(slotStart.UTC().Format(exdateUTC))
			}
		}
	}
	return nil
}

// weeklySlot returns the first occurrence on or after the record's DTSTART and
// the RRULE value that repeats it.
func (f *Feed) weeklySlot(record officehour.OfficeHour) (time.Time, time.Time, string, error) {
	weekday, ok := record.Weekday()
	if !ok {
		return time.Time{}, time.Time{}, "", &officehour.MalformedRecordError{RecordID: record.ID, Reason: "recurring record has no weekday"}
	}
	anchor, _, ok := record.ComposeSlot(record.DTStart, f.zone)
	if !ok {
		return time.Time{}, time.Time{}, "", &officehour.MalformedRecordError{RecordID: record.ID, Reason: "recurring record has unusable clock times"}
	}

	option := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{weekdays[weekday]},
		Dtstart:   anchor,
		Count:     1,
	}
	first, err := rrule.NewRRule(option)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("build weekly rule for %s: %w", record.ID, err)
	}
	occurrences := first.All()
	if len(occurrences) == 0 {
		return time.Time{}, time.Time{}, "", &officehour.MalformedRecordError{RecordID: record.ID, Reason: "weekly rule produced no occurrence"}
	}

	start, end, ok := record.ComposeSlot(occurrences[0], f.zone)
	if !ok {
		return time.Time{}, time.Time{}, "", &officehour.MalformedRecordError{RecordID: record.ID, Reason: "recurring record has unusable clock times"}
	}

	repeat := rrule.ROption{Freq: rrule.WEEKLY, Byweekday: option.Byweekday}
	return start, end, repeat.RRuleString(), nil
}

func (f *Feed) ownerTitle(ctx context.Context, record officehour.OfficeHour, titles map[string]string, names officehour.DisplayNameLookup) string {
	if title, ok := titles[record.OwnerID]; ok {
		return title
	}
	title := record.CreatedByEmail
	if names != nil {
		if name, err := names.DisplayName(ctx, record.OwnerID); err == nil && strings.TrimSpace(name) != "" {
			title = name
		}
	}
	if title == "" {
		title = record.OwnerID
	}
	titles[record.OwnerID] = title
	return title
}
