package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// ChangeRequestRepository implements persistence.ChangeRequestRepository using SQLite
type ChangeRequestRepository struct {
	q      queryer
	mapper *ErrorMapper
}

const changeRequestColumns = `id, requester_id, requester_name, operation, status, primary_oh, target_id, target_date,
	note, instructor_note, submitted_at, processed_at, processed_by`

// officeHourDocument is the JSON shape of the proposed record in primary_oh.
type officeHourDocument struct {
	ID             string      `json:"id,omitempty"`
	OwnerID        string      `json:"owner_id"`
	CreatedByEmail string      `json:"created_by_email"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
	IsRecurring    bool        `json:"is_recurring"`
	DayOfWeek      int         `json:"day_of_week"`
	StartTime      string      `json:"start_time"`
	EndTime        string      `json:"end_time"`
	Location       string      `json:"location"`
	DTStart        *time.Time  `json:"dt_start,omitempty"`
	Exceptions     []time.Time `json:"exceptions,omitempty"`
	TmpDate        *time.Time  `json:"tmp_date,omitempty"`
	TmpStartTime   *time.Time  `json:"tmp_start_time,omitempty"`
	TmpEndTime     *time.Time  `json:"tmp_end_time,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func encodeOfficeHour(oh officehour.OfficeHour) (string, error) {
	doc := officeHourDocument{
		ID:             oh.ID,
		OwnerID:        oh.OwnerID,
		CreatedByEmail: oh.CreatedByEmail,
		CreatedAt:      timePtr(oh.CreatedAt),
		IsRecurring:    oh.IsRecurring,
		DayOfWeek:      oh.DayOfWeek,
		StartTime:      oh.StartTime,
		EndTime:        oh.EndTime,
		Location:       oh.Location,
		DTStart:        timePtr(oh.DTStart),
		Exceptions:     oh.Exceptions,
		TmpDate:        timePtr(oh.TmpDate),
		TmpStartTime:   timePtr(oh.TmpStartTime),
		TmpEndTime:     timePtr(oh.TmpEndTime),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode primary_oh: %w", err)
	}
	return string(payload), nil
}

func decodeOfficeHour(raw string) (officehour.OfficeHour, error) {
	var doc officeHourDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return officehour.OfficeHour{}, fmt.Errorf("decode primary_oh: %w", err)
	}
	return officehour.OfficeHour{
		ID:             doc.ID,
		OwnerID:        doc.OwnerID,
		CreatedByEmail: doc.CreatedByEmail,
		CreatedAt:      timeValue(doc.CreatedAt),
		IsRecurring:    doc.IsRecurring,
		DayOfWeek:      doc.DayOfWeek,
		StartTime:      doc.StartTime,
		EndTime:        doc.EndTime,
		Location:       doc.Location,
		DTStart:        timeValue(doc.DTStart),
		Exceptions:     doc.Exceptions,
		TmpDate:        timeValue(doc.TmpDate),
		TmpStartTime:   timeValue(doc.TmpStartTime),
		TmpEndTime:     timeValue(doc.TmpEndTime),
	}, nil
}

// CreateChangeRequest stores a new change request.
func (r *ChangeRequestRepository) CreateChangeRequest(ctx context.Context, cr officehour.ChangeRequest) error {
	if strings.TrimSpace(cr.ID) == "" || strings.TrimSpace(cr.RequesterID) == "" {
		return persistence.ErrConstraintViolation
	}
	primary, err := encodeOfficeHour(cr.PrimaryOH)
	if err != nil {
		return err
	}
	if cr.SubmittedAt.IsZero() {
		cr.SubmittedAt = time.Now().UTC()
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO change_requests (`+changeRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID,
		cr.RequesterID,
		cr.RequesterName,
		string(cr.Operation),
		string(cr.Status),
		primary,
		cr.TargetID,
		nullTime(cr.TargetDate),
		cr.Note,
		cr.InstructorNote,
		formatUTC(cr.SubmittedAt),
		nullTimePtr(cr.ProcessedAt),
		cr.ProcessedBy,
	)
	return r.mapper.MapError(err)
}

// GetChangeRequest loads a change request by id.
func (r *ChangeRequestRepository) GetChangeRequest(ctx context.Context, id string) (officehour.ChangeRequest, error) {
	if strings.TrimSpace(id) == "" {
		return officehour.ChangeRequest{}, persistence.ErrNotFound
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = ?`, id)
	return r.scanChangeRequest(row)
}

// UpdateChangeRequest persists the review outcome of a change request.
func (r *ChangeRequestRepository) UpdateChangeRequest(ctx context.Context, cr officehour.ChangeRequest) error {
	if strings.TrimSpace(cr.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	result, err := r.q.ExecContext(ctx, `
		UPDATE change_requests
		SET status = ?, instructor_note = ?, processed_at = ?, processed_by = ?
		WHERE id = ?`,
		string(cr.Status),
		cr.InstructorNote,
		nullTimePtr(cr.ProcessedAt),
		cr.ProcessedBy,
		cr.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// ListChangeRequests returns matching requests, oldest submission first.
func (r *ChangeRequestRepository) ListChangeRequests(ctx context.Context, filter persistence.ChangeRequestFilter) ([]officehour.ChangeRequest, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RequesterID != "" {
		clauses = append(clauses, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + changeRequestColumns + ` FROM change_requests`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY submitted_at, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var requests []officehour.ChangeRequest
	for rows.Next() {
		cr, err := r.scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return requests, nil
}

func (r *ChangeRequestRepository) scanChangeRequest(row rowScanner) (officehour.ChangeRequest, error) {
	var (
		cr                      officehour.ChangeRequest
		operation, status       string
		primary, submittedAt    string
		targetDate, processedAt sql.NullString
	)
	if err := row.Scan(
		&cr.ID,
		&cr.RequesterID,
		&cr.RequesterName,
		&operation,
		&status,
		&primary,
		&cr.TargetID,
		&targetDate,
		&cr.Note,
		&cr.InstructorNote,
		&submittedAt,
		&processedAt,
		&cr.ProcessedBy,
	); err != nil {
		return officehour.ChangeRequest{}, r.mapper.MapError(err)
	}
	cr.Operation = officehour.Operation(operation)
	cr.Status = officehour.Status(status)

	var err error
	if cr.PrimaryOH, err = decodeOfficeHour(primary); err != nil {
		return officehour.ChangeRequest{}, err
	}
	if cr.TargetDate, err = parseNullTime("target_date", targetDate); err != nil {
		return officehour.ChangeRequest{}, err
	}
	if cr.SubmittedAt, err = parseTime("submitted_at", submittedAt); err != nil {
		return officehour.ChangeRequest{}, err
	}
	if cr.ProcessedAt, err = parseNullTimePtr("processed_at", processedAt); err != nil {
		return officehour.ChangeRequest{}, err
	}
	return cr, nil
}
