package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

type officeHourService interface {
	ListRecords(ctx context.Context, principal application.Principal, ownerID string) ([]officehour.OfficeHour, error)
	Upcoming(ctx context.Context, principal application.Principal, ownerID string) ([]officehour.OfficeHour, error)
	Create(ctx context.Context, principal application.Principal, req officehour.Request) (officehour.OfficeHour, error)
	Delete(ctx context.Context, principal application.Principal, id string) error
	CancelOccurrence(ctx context.Context, principal application.Principal, id, rawDate string) (officehour.OfficeHour, error)
}

// OfficeHourHandler serves stored records and their expanded occurrences.
type OfficeHourHandler struct {
	service   officeHourService
	zone      *time.Location
	responder responder
	logger    *slog.Logger
}

// NewOfficeHourHandler builds the handler. zone is the nominal zone dates are
// rendered in.
func NewOfficeHourHandler(service officeHourService, zone *time.Location, logger *slog.Logger) *OfficeHourHandler {
	base := defaultLogger(logger)
	if zone == nil {
		zone = time.UTC
	}
	return &OfficeHourHandler{service: service, zone: zone, responder: newResponder(base), logger: base}
}

// List returns raw records, the caller's own unless an instructor passes ?owner=.
func (h *OfficeHourHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	records, err := h.service.ListRecords(r.Context(), principal, ownerQuery(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, officeHourList{Items: newOfficeHourDTOs(records, h.zone)})
}

// Upcoming returns occurrences within the display horizon.
func (h *OfficeHourHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	occurrences, err := h.service.Upcoming(r.Context(), principal, ownerQuery(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, officeHourList{Items: newOfficeHourDTOs(occurrences, h.zone)})
}

// Create stores a record directly from a submission field bag. Instructor only.
func (h *OfficeHourHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFieldBag(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "OfficeHourHandler", "Create", "record_id", record.ID).
		InfoContext(r.Context(), "office hour created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newOfficeHourDTO(record, h.zone))
}

// Delete removes a record. Allowed for its owner and instructors.
func (h *OfficeHourHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CancelOccurrence records an exception date on a recurring record.
func (h *OfficeHourHandler) CancelOccurrence(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req exceptionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.CancelOccurrence(r.Context(), principal, id, req.Date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newOfficeHourDTO(record, h.zone))
}

func ownerQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("owner"))
}

type exceptionRequest struct {
	Date string `json:"date"`
}

// decodeFieldBag reads a flat submission form. Numbers and booleans are
// accepted in place of strings so dayOfWeek may be sent either way.
func decodeFieldBag(r *http.Request) (officehour.Request, error) {
	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw, false); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	vErr := &officehour.ValidationError{}
	for key, value := range raw {
		text, ok := scalarText(value)
		if !ok {
			vErr.Add(key, "must be a string or number")
			continue
		}
		fields[key] = text
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	return officehour.DecodeFields(fields)
}

func scalarText(value json.RawMessage) (string, bool) {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return "", false
	}
	switch v := decoded.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func optionalString(value string) mo.Option[string] {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return mo.None[string]()
	}
	return mo.Some(trimmed)
}

type officeHourList struct {
	Items []officeHourDTO `json:"items"`
}

type officeHourDTO struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	CreatedByEmail string   `json:"created_by_email"`
	CreatedAt      string   `json:"created_at,omitempty"`
	IsRecurring    bool     `json:"is_recurring"`
	DayOfWeek      *int     `json:"day_of_week,omitempty"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	Location       string   `json:"location"`
	DTStart        string   `json:"dtstart,omitempty"`
	Exceptions     []string `json:"exceptions,omitempty"`
	Date           string   `json:"date,omitempty"`
	Start          string   `json:"start,omitempty"`
	End            string   `json:"end,omitempty"`
}

func newOfficeHourDTO(record officehour.OfficeHour, zone *time.Location) officeHourDTO {
	dto := officeHourDTO{
		ID:             record.ID,
		OwnerID:        record.OwnerID,
		CreatedByEmail: record.CreatedByEmail,
		CreatedAt:      formatInstant(record.CreatedAt),
		IsRecurring:    record.IsRecurring,
		StartTime:      record.StartTime,
		EndTime:        record.EndTime,
		Location:       record.Location,
		DTStart:        formatInstant(record.DTStart),
	}
	if record.IsRecurring {
		day := record.DayOfWeek
		dto.DayOfWeek = &day
		for _, excluded := range record.Exceptions {
			dto.Exceptions = append(dto.Exceptions, officehour.DateKey(excluded, zone))
		}
	}
	if !record.TmpDate.IsZero() {
		dto.Date = officehour.DateKey(record.TmpDate, zone)
	}
	if !record.TmpStartTime.IsZero() {
		dto.Start = record.TmpStartTime.In(zone).Format(time.RFC3339)
	}
	if !record.TmpEndTime.IsZero() {
		dto.End = record.TmpEndTime.In(zone).Format(time.RFC3339)
	}
	return dto
}

func newOfficeHourDTOs(records []officehour.OfficeHour, zone *time.Location) []officeHourDTO {
	out := make([]officeHourDTO, 0, len(records))
	for _, record := range records {
		out = append(out, newOfficeHourDTO(record, zone))
	}
	return out
}
