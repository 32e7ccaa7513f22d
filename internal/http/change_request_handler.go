package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

type changeRequestService interface {
	SubmitCreate(ctx context.Context, principal application.Principal, req officehour.Request) (officehour.ChangeRequest, error)
	SubmitEdit(ctx context.Context, principal application.Principal, params application.OccurrenceEditParams) (officehour.ChangeRequest, error)
	SubmitDelete(ctx context.Context, principal application.Principal, params application.OccurrenceDeleteParams) (officehour.ChangeRequest, error)
	List(ctx context.Context, principal application.Principal, status officehour.Status) ([]officehour.ChangeRequest, error)
	ListMine(ctx context.Context, principal application.Principal) ([]officehour.ChangeRequest, error)
	Approve(ctx context.Context, principal application.Principal, id, note string) (officehour.ChangeRequest, error)
	Reject(ctx context.Context, principal application.Principal, id, note string) (officehour.ChangeRequest, error)
}

// ChangeRequestHandler serves submission and review of change requests.
type ChangeRequestHandler struct {
	service   changeRequestService
	zone      *time.Location
	responder responder
	logger    *slog.Logger
}

func NewChangeRequestHandler(service changeRequestService, zone *time.Location, logger *slog.Logger) *ChangeRequestHandler {
	base := defaultLogger(logger)
	if zone == nil {
		zone = time.UTC
	}
	return &ChangeRequestHandler{service: service, zone: zone, responder: newResponder(base), logger: base}
}

// SubmitCreate accepts the flat submission form for a new office hour.
func (h *ChangeRequestHandler) SubmitCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFieldBag(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cr, err := h.service.SubmitCreate(r.Context(), principal, req)
	h.respondSubmitted(w, r, "SubmitCreate", cr, err)
}

// SubmitEdit asks to move one occurrence to a new dated slot.
func (h *ChangeRequestHandler) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cr, err := h.service.SubmitEdit(r.Context(), principal, application.OccurrenceEditParams{
		OfficeHourID: strings.TrimSpace(req.OfficeHourID),
		Date:         strings.TrimSpace(req.Date),
		Replacement: officehour.TemporaryRequest{
			Date:      strings.TrimSpace(req.NewDate),
			StartTime: strings.TrimSpace(req.StartTime),
			EndTime:   strings.TrimSpace(req.EndTime),
			Location:  optionalString(req.Location),
			Note:      optionalString(req.Note),
		},
	})
	h.respondSubmitted(w, r, "SubmitEdit", cr, err)
}

// SubmitDelete asks to cancel one occurrence.
func (h *ChangeRequestHandler) SubmitDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cr, err := h.service.SubmitDelete(r.Context(), principal, application.OccurrenceDeleteParams{
		OfficeHourID: strings.TrimSpace(req.OfficeHourID),
		Date:         strings.TrimSpace(req.Date),
		Note:         strings.TrimSpace(req.Note),
	})
	h.respondSubmitted(w, r, "SubmitDelete", cr, err)
}

func (h *ChangeRequestHandler) respondSubmitted(w http.ResponseWriter, r *http.Request, operation string, cr officehour.ChangeRequest, err error) {
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "ChangeRequestHandler", operation, "change_request_id", cr.ID).
		InfoContext(r.Context(), "change request submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newChangeRequestDTO(cr, h.zone))
}

// List returns requests for review, filtered by ?status=. Instructor only.
func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	status := officehour.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	requests, err := h.service.List(r.Context(), principal, status)
	h.respondList(w, r, requests, err)
}

// ListMine returns the caller's own requests.
func (h *ChangeRequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	requests, err := h.service.ListMine(r.Context(), principal)
	h.respondList(w, r, requests, err)
}

func (h *ChangeRequestHandler) respondList(w http.ResponseWriter, r *http.Request, requests []officehour.ChangeRequest, err error) {
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	items := make([]changeRequestDTO, 0, len(requests))
	for _, cr := range requests {
		items = append(items, newChangeRequestDTO(cr, h.zone))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, changeRequestList{Items: items})
}

// Approve applies a pending request. Instructor only.
func (h *ChangeRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "Approve", h.service.Approve)
}

// Reject closes a pending request without applying it. Instructor only.
func (h *ChangeRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "Reject", h.service.Reject)
}

type reviewFunc func(ctx context.Context, principal application.Principal, id, note string) (officehour.ChangeRequest, error)

func (h *ChangeRequestHandler) review(w http.ResponseWriter, r *http.Request, operation string, apply reviewFunc) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cr, err := apply(r.Context(), principal, id, req.Note)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "ChangeRequestHandler", operation, "change_request_id", cr.ID, "status", cr.Status).
		InfoContext(r.Context(), "change request reviewed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newChangeRequestDTO(cr, h.zone))
}

type editRequest struct {
	OfficeHourID string `json:"office_hour_id"`
	Date         string `json:"date"`
	NewDate      string `json:"new_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Location     string `json:"location"`
	Note         string `json:"note"`
}

type deleteRequest struct {
	OfficeHourID string `json:"office_hour_id"`
	Date         string `json:"date"`
	Note         string `json:"note"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

type changeRequestList struct {
	Items []changeRequestDTO `json:"items"`
}

type changeRequestDTO struct {
	ID             string        `json:"id"`
	RequesterID    string        `json:"requester_id"`
	RequesterName  string        `json:"requester_name"`
	Operation      string        `json:"operation"`
	OfficeHour     officeHourDTO `json:"office_hour"`
	TargetID       string        `json:"target_id,omitempty"`
	TargetDate     string        `json:"target_date,omitempty"`
	Note           string        `json:"note,omitempty"`
	InstructorNote string        `json:"instructor_note,omitempty"`
	Status         string        `json:"status"`
	SubmittedAt    string        `json:"submitted_at"`
	ProcessedAt    string        `json:"processed_at,omitempty"`
	ProcessedBy    string        `json:"processed_by,omitempty"`
}

func newChangeRequestDTO(cr officehour.ChangeRequest, zone *time.Location) changeRequestDTO {
	dto := changeRequestDTO{
		ID:             cr.ID,
		RequesterID:    cr.RequesterID,
		RequesterName:  cr.RequesterName,
		Operation:      string(cr.Operation),
		OfficeHour:     newOfficeHourDTO(cr.PrimaryOH, zone),
		TargetID:       cr.TargetID,
		Note:           cr.Note,
		InstructorNote: cr.InstructorNote,
		Status:         string(cr.Status),
		SubmittedAt:    formatInstant(cr.SubmittedAt),
		ProcessedBy:    cr.ProcessedBy,
	}
	if !cr.TargetDate.IsZero() {
		dto.TargetDate = officehour.DateKey(cr.TargetDate, zone)
	}
	if cr.ProcessedAt != nil {
		dto.ProcessedAt = formatInstant(*cr.ProcessedAt)
	}
	return dto
}
