package officehour_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

func TestDecodeFieldsTemporary(t *testing.T) {
	t.Parallel()

	req, err := officehour.DecodeFields(map[string]string{
		"ohType":    "temporary",
		"tmpDate":   "2024-12-01",
		"startTime": "10:00",
		"endTime":   "11:00",
		"location":  "  ",
		"note":      "midterm prep",
	})
	require.NoError(t, err)

	tmp, ok := req.(officehour.TemporaryRequest)
	require.True(t, ok)
	assert.Equal(t, "2024-12-01", tmp.Date)
	assert.True(t, tmp.Location.IsAbsent())
	note, present := tmp.Note.Get()
	assert.True(t, present)
	assert.Equal(t, "midterm prep", note)
}

func TestDecodeFieldsRecurring(t *testing.T) {
	t.Parallel()

	req, err := officehour.DecodeFields(map[string]string{
		"ohType":    "recurrence",
		"dayOfWeek": "3",
		"startTime": "14:00",
		"endTime":   "15:30",
		"location":  "Gates 100",
	})
	require.NoError(t, err)

	rec, ok := req.(officehour.RecurringRequest)
	require.True(t, ok)
	assert.Equal(t, 3, rec.DayOfWeek)
	assert.Equal(t, "Gates 100", rec.Location.MustGet())
}

func TestDecodeFieldsRejectsOutsideUnion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fields map[string]string
		field  string
	}{
		{name: "missing type", fields: map[string]string{"startTime": "10:00"}, field: "ohType"},
		{name: "unknown type", fields: map[string]string{"ohType": "monthly"}, field: "ohType"},
		{name: "weekday on temporary", fields: map[string]string{"ohType": "temporary", "dayOfWeek": "2"}, field: "dayOfWeek"},
		{name: "date on recurring", fields: map[string]string{"ohType": "recurrence", "dayOfWeek": "2", "tmpDate": "2024-12-01"}, field: "tmpDate"},
		{name: "unknown field", fields: map[string]string{"ohType": "temporary", "room": "x"}, field: "room"},
		{name: "missing weekday", fields: map[string]string{"ohType": "recurrence"}, field: "dayOfWeek"},
		{name: "non numeric weekday", fields: map[string]string{"ohType": "recurrence", "dayOfWeek": "Wed"}, field: "dayOfWeek"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := officehour.DecodeFields(tc.fields)
			var vErr *officehour.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Field(tc.field), "got %v", vErr.FieldErrors)
		})
	}
}

func TestDecodeFieldsIgnoresBlankForeignFields(t *testing.T) {
	t.Parallel()

	_, err := officehour.DecodeFields(map[string]string{
		"ohType":    "temporary",
		"tmpDate":   "2024-12-01",
		"dayOfWeek": "",
	})
	require.NoError(t, err)
}
