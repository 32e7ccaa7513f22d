package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/logging"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errMissingSessionToken = errors.New("a session token is required")
	errMissingID           = errors.New("a resource id is required in the path")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application, core and persistence failures onto
// status codes and stable error codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *officehour.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "one or more fields are invalid",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	var malformed *officehour.MalformedRecordError
	switch {
	case errors.Is(err, errBadRequestBody):
		r.writeCoded(ctx, w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody.Error())
	case errors.Is(err, officehour.ErrUnauthenticated):
		r.writeCoded(ctx, w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication is required")
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeCoded(ctx, w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "email or password is incorrect")
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeCoded(ctx, w, http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "session is no longer valid, please sign in again")
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeCoded(ctx, w, http.StatusForbidden, "AUTH_ACCOUNT_DISABLED", "account has been deactivated")
	case errors.Is(err, application.ErrEmailNotAuthorized):
		r.writeCoded(ctx, w, http.StatusForbidden, "AUTH_EMAIL_NOT_AUTHORIZED", "email has not been authorized by an instructor")
	case errors.Is(err, application.ErrUnauthorized):
		r.writeCoded(ctx, w, http.StatusForbidden, "AUTH_FORBIDDEN", "you are not allowed to perform this action")
	case errors.Is(err, application.ErrNotFound):
		r.writeCoded(ctx, w, http.StatusNotFound, "NOT_FOUND", "the requested resource was not found")
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeCoded(ctx, w, http.StatusConflict, "ALREADY_EXISTS", "the resource already exists")
	case errors.Is(err, officehour.ErrInvalidTransition):
		r.writeCoded(ctx, w, http.StatusConflict, "INVALID_TRANSITION", "the change request has already been processed")
	case errors.As(err, &malformed):
		r.writeCoded(ctx, w, http.StatusConflict, "MALFORMED_RECORD", malformed.Error())
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeCoded(ctx, w, http.StatusInternalServerError, "INTERNAL", "an internal error occurred")
	}
}

func (r responder) writeCoded(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.OrDefault(ctx, r.logger)
}

// decodeJSON reads a JSON object from the request body into dst. An empty
// body is accepted when optional is true.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errBadRequestBody
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return errBadRequestBody
	}
	return nil
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
