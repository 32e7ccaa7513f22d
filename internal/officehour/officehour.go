// Package officehour holds the office hour record model, change requests, and the
// helpers that turn submitted forms into pending change requests.
package officehour

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoDay marks the DayOfWeek of a one-time office hour.
const NoDay = -1

// DefaultLocation is used when a submission leaves the room blank.
const DefaultLocation = "FGH 201"

// DefaultMinDuration is the shortest office hour a submission may describe.
const DefaultMinDuration = 60 * time.Minute

// OfficeHour is either a weekly recurring rule or a single dated slot.
//
// Recurring records use DayOfWeek, DTStart and Exceptions. One-time records use
// TmpDate, TmpStartTime and TmpEndTime. Occurrences produced by expanding a
// recurring record keep the source ID and carry the occurrence fields as well.
type OfficeHour struct {
	ID             string
	OwnerID        string
	CreatedByEmail string
	CreatedAt      time.Time

	IsRecurring bool
	DayOfWeek   int
	StartTime   string
	EndTime     string
	Location    string

	DTStart    time.Time
	Exceptions []time.Time

	TmpDate      time.Time
	TmpStartTime time.Time
	TmpEndTime   time.Time
}

// Validate checks the shape of a stored record. It does not enforce the minimum
// duration, which only applies to new submissions.
func (o OfficeHour) Validate() error {
	reason := o.invalidReason()
	if reason == "" {
		return nil
	}
	return &MalformedRecordError{RecordID: o.ID, Reason: reason}
}

func (o OfficeHour) invalidReason() string {
	if o.IsRecurring {
		if o.DayOfWeek < int(time.Sunday) || o.DayOfWeek > int(time.Saturday) {
			return fmt.Sprintf("recurring record has dayOfWeek %d outside 0..6", o.DayOfWeek)
		}
		if o.DTStart.IsZero() {
			return "recurring record has no dtStart"
		}
		if _, err := ParseClock(o.StartTime); err != nil {
			return "recurring record has invalid startTime: " + err.Error()
		}
		if _, err := ParseClock(o.EndTime); err != nil {
			return "recurring record has invalid endTime: " + err.Error()
		}
		return ""
	}
	if o.TmpDate.IsZero() {
		return "one-time record has no tmpDate"
	}
	return ""
}

// Weekday returns the weekday of a recurring record.
func (o OfficeHour) Weekday() (time.Weekday, bool) {
	if !o.IsRecurring || o.DayOfWeek < 0 || o.DayOfWeek > 6 {
		return 0, false
	}
	return time.Weekday(o.DayOfWeek), true
}

// Duration is the wall clock length between StartTime and EndTime.
func (o OfficeHour) Duration() (time.Duration, error) {
	start, err := ParseClock(o.StartTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock(o.EndTime)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// HasException reports whether day falls on an excluded date. Dates are compared
// in loc so an exception recorded at any instant of that day matches.
func (o OfficeHour) HasException(day time.Time, loc *time.Location) bool {
	if len(o.Exceptions) == 0 {
		return false
	}
	want := DateKey(day, loc)
	for _, ex := range o.Exceptions {
		if DateKey(ex, loc) == want {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the Exceptions backing array.
func (o OfficeHour) Clone() OfficeHour {
	out := o
	if o.Exceptions != nil {
		out.Exceptions = append([]time.Time(nil), o.Exceptions...)
	}
	return out
}

// ClockTime is a wall clock time of day in minutes after midnight.
type ClockTime int

// ParseClock parses "HH:mm" (seconds are accepted and dropped).
func ParseClock(value string) (ClockTime, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty time of day")
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time of day %q must be HH:mm", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("time of day %q has an invalid hour", value)
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("time of day %q must be HH:mm", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q has an invalid minute", value)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("time of day %q has an invalid second", value)
		}
	}
	return ClockTime(hour*60 + minute), nil
}

// String formats the clock as "HH:mm".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Sub returns c-other as a duration.
func (c ClockTime) Sub(other ClockTime) time.Duration {
	return time.Duration(int(c)-int(other)) * time.Minute
}

// On places the clock on the calendar day of day, interpreted in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}

// StartOfDay truncates t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DateKey renders the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// ComposeSlot turns StartTime/EndTime into instants on the calendar day of day.
// ok is false when either clock value does not parse.
func (o OfficeHour) ComposeSlot(day time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	startClock, err := ParseClock(o.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	endClock, err := ParseClock(o.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return startClock.On(day, loc), endClock.On(day, loc), true
}
