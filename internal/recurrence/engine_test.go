package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

// Monday.
var reference = time.Date(2024, time.January, 1, 15, 0, 0, 0, time.UTC)

func weekly(id string, day time.Weekday) officehour.OfficeHour {
	return officehour.OfficeHour{
		ID:          id,
		OwnerID:     "ta-1",
		IsRecurring: true,
		DayOfWeek:   int(day),
		StartTime:   "14:00",
		EndTime:     "15:30",
		Location:    "Gates 100",
		DTStart:     time.Date(2023, time.September, 5, 14, 0, 0, 0, time.UTC),
		Exceptions:  []time.Time{},
	}
}

func oneTime(id string, date time.Time) officehour.OfficeHour {
	return officehour.OfficeHour{
		ID:           id,
		OwnerID:      "ta-2",
		DayOfWeek:    officehour.NoDay,
		StartTime:    "14:00",
		EndTime:      "15:00",
		Location:     "FGH 201",
		TmpDate:      date,
		TmpStartTime: date.Add(14 * time.Hour),
		TmpEndTime:   date.Add(15 * time.Hour),
	}
}

func TestExpander_Expand(t *testing.T) {
	t.Parallel()

	t.Run("emits each matching weekday inside the horizon", func(t *testing.T) {
		t.Parallel()

		expander := NewExpander(time.UTC, 0)
		result := expander.Expand([]officehour.OfficeHour{weekly("oh-1", time.Tuesday)}, reference)
		require.NoError(t, result.Err())

		want := []string{
			"2024-01-02", "2024-01-09", "2024-01-16", "2024-01-23", "2024-01-30",
			"2024-02-06", "2024-02-13", "2024-02-20", "2024-02-27",
		}
		got := make([]string, 0, len(result.Occurrences))
		for _, occ := range result.Occurrences {
			got = append(got, occ.TmpDate.Format(time.DateOnly))
			assert.Equal(t, time.Tuesday, occ.TmpDate.Weekday())
			assert.Equal(t, "oh-1", occ.ID)
			assert.True(t, occ.IsRecurring)
			assert.Equal(t, 14, occ.TmpStartTime.Hour())
			assert.Equal(t, 30, occ.TmpEndTime.Minute())
			assert.Equal(t, occ.TmpDate.Format(time.DateOnly), occ.TmpStartTime.Format(time.DateOnly))
		}
		assert.Equal(t, want, got)
	})

	t.Run("includes the reference day itself", func(t *testing.T) {
		t.Parallel()

		expander := NewExpander(time.UTC, 2)
		result := expander.Expand([]officehour.OfficeHour{weekly("oh-1", time.Monday)}, reference)
		require.NotEmpty(t, result.Occurrences)
		assert.Equal(t, "2024-01-01", result.Occurrences[0].TmpDate.Format(time.DateOnly))

		start, end := expander.Horizon(reference)
		for _, occ := range result.Occurrences {
			assert.False(t, occ.TmpDate.Before(start))
			assert.True(t, occ.TmpDate.Before(end))
		}
	})

	t.Run("passes one-time records through unchanged", func(t *testing.T) {
		t.Parallel()

		record := oneTime("oh-2", time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC))
		result := NewExpander(time.UTC, 2).Expand([]officehour.OfficeHour{record}, reference)
		require.Len(t, result.Occurrences, 1)
		assert.Equal(t, record, result.Occurrences[0])
	})

	t.Run("sorts by date and keeps input order for ties", func(t *testing.T) {
		t.Parallel()

		sameDay := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
		records := []officehour.OfficeHour{
			oneTime("late", time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)),
			oneTime("tie-a", sameDay),
			weekly("weekly", time.Tuesday),
			oneTime("tie-b", sameDay),
		}
		result := NewExpander(time.UTC, 2).Expand(records, reference)

		for i := 1; i < len(result.Occurrences); i++ {
			assert.False(t, result.Occurrences[i].TmpDate.Before(result.Occurrences[i-1].TmpDate))
		}
		require.GreaterOrEqual(t, len(result.Occurrences), 3)
		assert.Equal(t, "tie-a", result.Occurrences[0].ID)
		assert.Equal(t, "weekly", result.Occurrences[1].ID)
		assert.Equal(t, "tie-b", result.Occurrences[2].ID)
	})

	t.Run("is deterministic for a fixed reference", func(t *testing.T) {
		t.Parallel()

		expander := NewExpander(time.UTC, 2)
		records := []officehour.OfficeHour{weekly("a", time.Friday), oneTime("b", reference)}
		assert.Equal(t, expander.Expand(records, reference), expander.Expand(records, reference))
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		t.Parallel()

		records := []officehour.OfficeHour{weekly("a", time.Friday)}
		before := records[0]
		NewExpander(time.UTC, 2).Expand(records, reference)
		assert.Equal(t, before, records[0])
	})

	t.Run("collects malformed records without aborting", func(t *testing.T) {
		t.Parallel()

		bad := weekly("bad", time.Tuesday)
		bad.DayOfWeek = 9
		unanchored := weekly("unanchored", time.Wednesday)
		unanchored.DTStart = time.Time{}
		undated := oneTime("undated", reference)
		undated.TmpDate = time.Time{}
		records := []officehour.OfficeHour{bad, unanchored, undated, weekly("ok", time.Tuesday)}
		result := NewExpander(time.UTC, 2).Expand(records, reference)

		require.Len(t, result.Malformed, 3)
		ids := []string{result.Malformed[0].RecordID, result.Malformed[1].RecordID, result.Malformed[2].RecordID}
		assert.ElementsMatch(t, []string{"bad", "unanchored", "undated"}, ids)
		assert.Error(t, result.Err())
		assert.Len(t, result.Occurrences, 9)
		for _, occ := range result.Occurrences {
			assert.Equal(t, "ok", occ.ID)
		}
	})

	t.Run("leaves exceptions in place unless asked", func(t *testing.T) {
		t.Parallel()

		record := weekly("oh-1", time.Tuesday)
		record.Exceptions = []time.Time{time.Date(2024, time.January, 9, 14, 0, 0, 0, time.UTC)}
		expander := NewExpander(time.UTC, 2)

		assert.Len(t, expander.Expand([]officehour.OfficeHour{record}, reference).Occurrences, 9)

		filtered := expander.Expand([]officehour.OfficeHour{record}, reference, WithExceptions()).Occurrences
		require.Len(t, filtered, 8)
		for _, occ := range filtered {
			assert.NotEqual(t, "2024-01-09", occ.TmpDate.Format(time.DateOnly))
		}

		assert.Len(t, expander.Expand([]officehour.OfficeHour{record}, reference, WithExceptionSuppression(false)).Occurrences, 9)
	})

	t.Run("clips one-time records on request", func(t *testing.T) {
		t.Parallel()

		records := []officehour.OfficeHour{
			oneTime("past", time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)),
			oneTime("inside", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)),
			oneTime("beyond", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)),
		}
		result := NewExpander(time.UTC, 2).Expand(records, reference, WithinHorizon())
		require.Len(t, result.Occurrences, 1)
		assert.Equal(t, "inside", result.Occurrences[0].ID)
	})

	t.Run("computes calendar days in the configured zone", func(t *testing.T) {
		t.Parallel()

		zone := time.FixedZone("PST", -8*3600)
		// 2024-01-02 03:00 UTC is still Monday 2024-01-01 in PST.
		ref := time.Date(2024, time.January, 2, 3, 0, 0, 0, time.UTC)
		result := NewExpander(zone, 1).Expand([]officehour.OfficeHour{weekly("oh-1", time.Monday)}, ref)
		require.NotEmpty(t, result.Occurrences)
		first := result.Occurrences[0]
		assert.Equal(t, "2024-01-01", first.TmpDate.Format(time.DateOnly))
		assert.Equal(t, time.Monday, first.TmpDate.Weekday())
		assert.Equal(t, "2024-01-01T14:00:00-08:00", first.TmpStartTime.Format(time.RFC3339))
	})
}

func TestFilterExceptionsKeepsOneTime(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	single := oneTime("single", day)
	single.Exceptions = []time.Time{day}
	out := FilterExceptions([]officehour.OfficeHour{single}, time.UTC)
	assert.Len(t, out, 1)
}
