package calendar_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/WilliamHangXu/EasyOH/internal/calendar"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/testfixtures"
)

func newFeed() *calendar.Feed {
	return calendar.NewFeed(calendar.FeedConfig{
		Name: "CS 101 Office Hours",
		Now:  testfixtures.ReferenceTime,
	})
}

func render(t *testing.T, records []officehour.OfficeHour, names officehour.DisplayNameLookup) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, newFeed().Write(context.Background(), &buf, records, names))
	return buf.String()
}

func TestFeedRecurringRecord(t *testing.T) {
	t.Parallel()

	weekly := testfixtures.NewRecurringOfficeHour(time.Tuesday,
		testfixtures.WithOfficeHourID("oh-weekly"),
		testfixtures.WithExceptions(time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)),
	)
	body := render(t, []officehour.OfficeHour{weekly}, nil)

	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Contains(t, body, "X-WR-CALNAME:CS 101 Office Hours")
	assert.Contains(t, body, "UID:oh-weekly@easyoh")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=TU")
	assert.Contains(t, body, "DTSTART:20230905T140000Z")
	assert.Contains(t, body, "DTEND:20230905T150000Z")
	assert.Contains(t, body, "EXDATE:20240109T140000Z")
	assert.Contains(t, body, "LOCATION:"+officehour.DefaultLocation)
	assert.Contains(t, body, "SUMMARY:Office hours: user-001@example.edu")
}

func TestFeedExpandsLikeTheExpander(t *testing.T) {
	t.Parallel()

	weekly := testfixtures.NewRecurringOfficeHour(time.Tuesday,
		testfixtures.WithExceptions(time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)),
	)
	cal, err := ics.ParseCalendar(strings.NewReader(render(t, []officehour.OfficeHour{weekly}, nil)))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	event := cal.Events()[0]

	var lines []string
	for _, prop := range []ics.ComponentProperty{ics.ComponentPropertyDtStart, ics.ComponentPropertyRrule, ics.ComponentPropertyExdate} {
		p := event.GetProperty(prop)
		require.NotNil(t, p, "missing %s", prop)
		lines = append(lines, string(prop)+":"+p.Value)
	}
	set, err := rrule.StrToRRuleSet(strings.Join(lines, "\n"))
	require.NoError(t, err)

	var got []string
	for _, at := range set.Between(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		true,
	) {
		got = append(got, at.UTC().Format(time.DateOnly))
	}
	assert.Equal(t, []string{"2024-01-02", "2024-01-16", "2024-01-23", "2024-01-30"}, got)
}

func TestFeedOneTimeRecordAndNames(t *testing.T) {
	t.Parallel()

	single := testfixtures.NewOneTimeOfficeHour(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		testfixtures.WithOfficeHourID("oh-single"),
		testfixtures.WithOwner("ta-9", "ta9@example.edu"),
		testfixtures.WithLocation("Library 3"),
	)
	names := officehour.DisplayNameFunc(func(_ context.Context, userID string) (string, error) {
		if userID == "ta-9" {
			return "Nia Ward", nil
		}
		return "", errors.New("unknown")
	})
	body := render(t, []officehour.OfficeHour{single}, names)

	assert.Contains(t, body, "DTSTART:20241201T100000Z")
	assert.Contains(t, body, "DTEND:20241201T110000Z")
	assert.Contains(t, body, "SUMMARY:Office hours: Nia Ward")
	assert.Contains(t, body, "LOCATION:Library 3")
	assert.NotContains(t, body, "RRULE")
}

func TestFeedSkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	broken := testfixtures.NewRecurringOfficeHour(time.Monday, testfixtures.WithOfficeHourID("oh-broken"))
	broken.DayOfWeek = 9
	unanchored := testfixtures.NewRecurringOfficeHour(time.Tuesday, testfixtures.WithOfficeHourID("oh-unanchored"))
	unanchored.DTStart = time.Time{}
	good := testfixtures.NewOneTimeOfficeHour(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), testfixtures.WithOfficeHourID("oh-good"))

	cal := newFeed().Build(context.Background(), []officehour.OfficeHour{broken, unanchored, good}, nil)
	require.Len(t, cal.Events(), 1)
	assert.Equal(t, "oh-good@easyoh", cal.Events()[0].Id())
}
