package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Fixed width so that stored UTC values compare correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.Format(timestampLayout)
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatUTC(*t), Valid: true}
}

func parseTime(column, value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return parsed, nil
}

func parseNullTime(column string, value sql.NullString) (time.Time, error) {
	if !value.Valid || value.String == "" {
		return time.Time{}, nil
	}
	return parseTime(column, value.String)
}

func parseNullTimePtr(column string, value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := parseTime(column, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
