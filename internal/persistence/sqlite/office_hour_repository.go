package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// OfficeHourRepository implements persistence.OfficeHourRepository using SQLite
type OfficeHourRepository struct {
	q      queryer
	mapper *ErrorMapper
}

const officeHourColumns = `oh.id, oh.owner_id, oh.created_by_email, oh.created_at, oh.is_recurring, oh.day_of_week,
	oh.start_time, oh.end_time, oh.location, oh.dt_start, oh.tmp_date, oh.tmp_start_time, oh.tmp_end_time`

// CreateOfficeHour inserts a record and its exception dates.
func (r *OfficeHourRepository) CreateOfficeHour(ctx context.Context, oh officehour.OfficeHour) error {
	if strings.TrimSpace(oh.ID) == "" || strings.TrimSpace(oh.OwnerID) == "" {
		return persistence.ErrConstraintViolation
	}
	if oh.CreatedAt.IsZero() {
		oh.CreatedAt = time.Now().UTC()
	}
	dayOfWeek := oh.DayOfWeek
	if !oh.IsRecurring {
		dayOfWeek = officehour.NoDay
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO office_hours (id, owner_id, created_by_email, created_at, is_recurring, day_of_week,
			start_time, end_time, location, dt_start, tmp_date, tmp_start_time, tmp_end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		oh.ID,
		oh.OwnerID,
		persistence.NormalizeEmail(oh.CreatedByEmail),
		formatUTC(oh.CreatedAt),
		oh.IsRecurring,
		dayOfWeek,
		oh.StartTime,
		oh.EndTime,
		oh.Location,
		nullTime(oh.DTStart),
		nullTime(oh.TmpDate),
		nullTime(oh.TmpStartTime),
		nullTime(oh.TmpEndTime),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	for _, at := range oh.Exceptions {
		if err := r.insertException(ctx, oh.ID, at); err != nil {
			return err
		}
	}
	return nil
}

// GetOfficeHour loads one record with its exceptions.
func (r *OfficeHourRepository) GetOfficeHour(ctx context.Context, id string) (officehour.OfficeHour, error) {
	if strings.TrimSpace(id) == "" {
		return officehour.OfficeHour{}, persistence.ErrNotFound
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+officeHourColumns+` FROM office_hours oh WHERE oh.id = ?`, id)
	oh, err := r.scanOfficeHour(row)
	if err != nil {
		return officehour.OfficeHour{}, err
	}

	exceptions, err := r.loadExceptions(ctx, []string{oh.ID})
	if err != nil {
		return officehour.OfficeHour{}, err
	}
	oh.Exceptions = exceptions[oh.ID]
	return oh, nil
}

// ListOfficeHours returns records matching filter ordered by creation time.
func (r *OfficeHourRepository) ListOfficeHours(ctx context.Context, filter persistence.OfficeHourFilter) ([]officehour.OfficeHour, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + officeHourColumns + ` FROM office_hours oh`)
	if filter.ActiveOwnersOnly {
		query.WriteString(` JOIN users u ON u.id = oh.owner_id AND u.active = 1`)
	}
	if len(filter.OwnerIDs) > 0 {
		query.WriteString(` WHERE oh.owner_id IN (` + placeholders(len(filter.OwnerIDs)) + `)`)
		for _, id := range filter.OwnerIDs {
			args = append(args, id)
		}
	}
	query.WriteString(` ORDER BY oh.created_at, oh.id`)

	rows, err := r.q.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var records []officehour.OfficeHour
	for rows.Next() {
		oh, err := r.scanOfficeHour(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, oh)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	// Release the connection before the exception query.
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}
	ids := make([]string, 0, len(records))
	for _, oh := range records {
		ids = append(ids, oh.ID)
	}
	exceptions, err := r.loadExceptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Exceptions = exceptions[records[i].ID]
	}
	return records, nil
}

// DeleteOfficeHour removes a record and its exceptions.
func (r *OfficeHourRepository) DeleteOfficeHour(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM office_hour_exceptions WHERE office_hour_id = ?`, id); err != nil {
		return r.mapper.MapError(err)
	}
	result, err := r.q.ExecContext(ctx, `DELETE FROM office_hours WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// AddException records one excluded date on an existing record.
func (r *OfficeHourRepository) AddException(ctx context.Context, officeHourID string, at time.Time) error {
	var exists int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM office_hours WHERE id = ?`, officeHourID).Scan(&exists)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.insertException(ctx, officeHourID, at)
}

func (r *OfficeHourRepository) insertException(ctx context.Context, officeHourID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO office_hour_exceptions (office_hour_id, excluded_at)
		VALUES (?, ?)`, officeHourID, formatUTC(at))
	return r.mapper.MapError(err)
}

func (r *OfficeHourRepository) loadExceptions(ctx context.Context, ids []string) (map[string][]time.Time, error) {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT office_hour_id, excluded_at
		FROM office_hour_exceptions
		WHERE office_hour_id IN (`+placeholders(len(ids))+`)
		ORDER BY excluded_at`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make(map[string][]time.Time, len(ids))
	for _, id := range ids {
		out[id] = []time.Time{}
	}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, r.mapper.MapError(err)
		}
		at, err := parseTime("excluded_at", raw)
		if err != nil {
			return nil, err
		}
		out[id] = append(out[id], at)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func (r *OfficeHourRepository) scanOfficeHour(row rowScanner) (officehour.OfficeHour, error) {
	var (
		oh                                 officehour.OfficeHour
		createdAt                          string
		dtStart, tmpDate, tmpStart, tmpEnd sql.NullString
	)
	if err := row.Scan(
		&oh.ID,
		&oh.OwnerID,
		&oh.CreatedByEmail,
		&createdAt,
		&oh.IsRecurring,
		&oh.DayOfWeek,
		&oh.StartTime,
		&oh.EndTime,
		&oh.Location,
		&dtStart,
		&tmpDate,
		&tmpStart,
		&tmpEnd,
	); err != nil {
		return officehour.OfficeHour{}, r.mapper.MapError(err)
	}

	var err error
	if oh.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return officehour.OfficeHour{}, err
	}
	if oh.DTStart, err = parseNullTime("dt_start", dtStart); err != nil {
		return officehour.OfficeHour{}, err
	}
	if oh.TmpDate, err = parseNullTime("tmp_date", tmpDate); err != nil {
		return officehour.OfficeHour{}, err
	}
	if oh.TmpStartTime, err = parseNullTime("tmp_start_time", tmpStart); err != nil {
		return officehour.OfficeHour{}, err
	}
	if oh.TmpEndTime, err = parseNullTime("tmp_end_time", tmpEnd); err != nil {
		return officehour.OfficeHour{}, err
	}
	return oh, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
