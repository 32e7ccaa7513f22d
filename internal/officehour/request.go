package officehour

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Kind is the ohType discriminator of a submission.
type Kind string

const (
	KindTemporary Kind = "temporary"
	KindRecurring Kind = "recurrence"
)

// Form field names.
const (
	FieldType      = "ohType"
	FieldDate      = "tmpDate"
	FieldDayOfWeek = "dayOfWeek"
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
	FieldLocation  = "location"
	FieldNote      = "note"
	FieldTime      = "time"
)

// Request is a submission form. It is either a TemporaryRequest or a RecurringRequest.
type Request interface {
	Kind() Kind
	times() (string, string)
	location() mo.Option[string]
	note() mo.Option[string]
}

// TemporaryRequest describes a single dated slot.
type TemporaryRequest struct {
	// Date is YYYY-MM-DD, or an RFC 3339 timestamp whose date part is used as written.
	Date      string
	StartTime string
	EndTime   string
	Location  mo.Option[string]
	Note      mo.Option[string]
}

// Kind implements Request.
func (TemporaryRequest) Kind() Kind { return KindTemporary }

func (r TemporaryRequest) times() (string, string)     { return r.StartTime, r.EndTime }
func (r TemporaryRequest) location() mo.Option[string] { return r.Location }
func (r TemporaryRequest) note() mo.Option[string]     { return r.Note }

// RecurringRequest describes a weekly slot.
type RecurringRequest struct {
	DayOfWeek int
	StartTime string
	EndTime   string
	Location  mo.Option[string]
	Note      mo.Option[string]
}

// Kind implements Request.
func (RecurringRequest) Kind() Kind { return KindRecurring }

func (r RecurringRequest) times() (string, string)     { return r.StartTime, r.EndTime }
func (r RecurringRequest) location() mo.Option[string] { return r.Location }
func (r RecurringRequest) note() mo.Option[string]     { return r.Note }

var commonFields = map[string]struct{}{
	FieldType:      {},
	FieldStartTime: {},
	FieldEndTime:   {},
	FieldLocation:  {},
	FieldNote:      {},
}

// DecodeFields turns a flat form into a Request. Unknown ohType values and fields
// that do not belong to the chosen variant are rejected.
func DecodeFields(fields map[string]string) (Request, error) {
	vErr := &ValidationError{}
	kind := Kind(strings.TrimSpace(fields[FieldType]))
	var extra string
	switch kind {
	case KindTemporary:
		extra = FieldDate
	case KindRecurring:
		extra = FieldDayOfWeek
	case "":
		vErr.Add(FieldType, "office hour type is required")
		return nil, vErr
	default:
		vErr.Add(FieldType, "office hour type must be temporary or recurrence")
		return nil, vErr
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := commonFields[key]; ok || key == extra {
			continue
		}
		if strings.TrimSpace(fields[key]) == "" {
			continue
		}
		vErr.Add(key, "field is not allowed for "+string(kind)+" office hours")
	}

	location := optional(fields[FieldLocation])
	note := optional(fields[FieldNote])

	if kind == KindTemporary {
		if vErr.HasErrors() {
			return nil, vErr
		}
		return TemporaryRequest{
			Date:      strings.TrimSpace(fields[FieldDate]),
			StartTime: strings.TrimSpace(fields[FieldStartTime]),
			EndTime:   strings.TrimSpace(fields[FieldEndTime]),
			Location:  location,
			Note:      note,
		}, nil
	}

	day := NoDay
	rawDay := strings.TrimSpace(fields[FieldDayOfWeek])
	if rawDay == "" {
		vErr.Add(FieldDayOfWeek, "day of week is required")
	} else if parsed, err := strconv.Atoi(rawDay); err != nil {
		vErr.Add(FieldDayOfWeek, "day of week must be an integer between 0 and 6")
	} else {
		day = parsed
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	return RecurringRequest{
		DayOfWeek: day,
		StartTime: strings.TrimSpace(fields[FieldStartTime]),
		EndTime:   strings.TrimSpace(fields[FieldEndTime]),
		Location:  location,
		Note:      note,
	}, nil
}

func optional(value string) mo.Option[string] {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return mo.None[string]()
	}
	return mo.Some(trimmed)
}
