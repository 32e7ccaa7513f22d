package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/WilliamHangXu/EasyOH/internal/calendar"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

type feedSource interface {
	FeedRecords(ctx context.Context) ([]officehour.OfficeHour, error)
}

// CalendarHandler serves the subscribable iCalendar feed.
type CalendarHandler struct {
	records   feedSource
	names     officehour.DisplayNameLookup
	feed      *calendar.Feed
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(records feedSource, names officehour.DisplayNameLookup, feed *calendar.Feed, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{records: records, names: names, feed: feed, responder: newResponder(base), logger: base}
}

// Feed writes every active owner's office hours as text/calendar.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.FeedRecords(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var body bytes.Buffer
	if err := h.feed.Write(r.Context(), &body, records, h.names); err != nil {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "Feed").
			ErrorContext(r.Context(), "failed to render calendar", "error", err)
		h.responder.writeCoded(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "an internal error occurred")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="office-hours.ics"`)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}
