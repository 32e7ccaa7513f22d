package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

type rosterService interface {
	InviteTA(ctx context.Context, principal application.Principal, email string) (persistence.AuthorizedEmail, error)
	ListTAs(ctx context.Context, principal application.Principal) ([]persistence.User, error)
	DeactivateTA(ctx context.Context, principal application.Principal, userID string) error
}

// RosterHandler serves TA management for instructors.
type RosterHandler struct {
	service   rosterService
	responder responder
	logger    *slog.Logger
}

func NewRosterHandler(service rosterService, logger *slog.Logger) *RosterHandler {
	base := defaultLogger(logger)
	return &RosterHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	tas, err := h.service.ListTAs(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	items := make([]userDTO, 0, len(tas))
	for _, ta := range tas {
		items = append(items, newUserDTO(ta))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userList{Items: items})
}

// Invite authorizes an email address to sign up as a TA.
func (h *RosterHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	entry, err := h.service.InviteTA(r.Context(), principal, req.Email)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "RosterHandler", "Invite", "email", entry.Email).
		InfoContext(r.Context(), "TA authorized")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, authorizedEmailDTO{
		Email:     entry.Email,
		Role:      string(entry.Role),
		InvitedBy: entry.InvitedBy,
		CreatedAt: formatInstant(entry.CreatedAt),
	})
}

// Deactivate disables a TA account and withdraws the invite.
func (h *RosterHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeactivateTA(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type inviteRequest struct {
	Email string `json:"email"`
}

type userList struct {
	Items []userDTO `json:"items"`
}

type authorizedEmailDTO struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
	CreatedAt string `json:"created_at"`
}
