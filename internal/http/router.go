package http

import (
	"log/slog"
	"net/http"
)

// RouterConfig wires handlers into the API. Nil handlers leave their routes
// unregistered.
type RouterConfig struct {
	Auth           *AuthHandler
	OfficeHours    *OfficeHourHandler
	ChangeRequests *ChangeRequestHandler
	Roster         *RosterHandler
	Calendar       *CalendarHandler
	// Sessions guards every route except sign-up, login, logout and the calendar feed.
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Sessions != nil {
		guard := RequireSession(cfg.Sessions, cfg.Logger)
		protect = func(h http.HandlerFunc) http.Handler { return guard(h) }
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Auth != nil {
		mux.HandleFunc("POST /signup", cfg.Auth.SignUp)
		mux.HandleFunc("POST /login", cfg.Auth.Login)
		mux.HandleFunc("POST /logout", cfg.Auth.Logout)
	}

	if cfg.OfficeHours != nil {
		mux.Handle("GET /office-hours", protect(cfg.OfficeHours.List))
		mux.Handle("POST /office-hours", protect(cfg.OfficeHours.Create))
		mux.Handle("GET /office-hours/upcoming", protect(cfg.OfficeHours.Upcoming))
		mux.Handle("DELETE /office-hours/{id}", protect(cfg.OfficeHours.Delete))
		mux.Handle("POST /office-hours/{id}/exceptions", protect(cfg.OfficeHours.CancelOccurrence))
	}

	if cfg.ChangeRequests != nil {
		mux.Handle("GET /change-requests", protect(cfg.ChangeRequests.List))
		mux.Handle("POST /change-requests", protect(cfg.ChangeRequests.SubmitCreate))
		mux.Handle("GET /change-requests/mine", protect(cfg.ChangeRequests.ListMine))
		mux.Handle("POST /change-requests/edit", protect(cfg.ChangeRequests.SubmitEdit))
		mux.Handle("POST /change-requests/delete", protect(cfg.ChangeRequests.SubmitDelete))
		mux.Handle("POST /change-requests/{id}/approve", protect(cfg.ChangeRequests.Approve))
		mux.Handle("POST /change-requests/{id}/reject", protect(cfg.ChangeRequests.Reject))
	}

	if cfg.Roster != nil {
		mux.Handle("GET /tas", protect(cfg.Roster.List))
		mux.Handle("POST /tas", protect(cfg.Roster.Invite))
		mux.Handle("DELETE /tas/{id}", protect(cfg.Roster.Deactivate))
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("GET /calendar.ics", cfg.Calendar.Feed)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
