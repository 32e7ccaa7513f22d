// Package http provides HTTP handlers and middleware for the office hours API.
//
// Sessions are carried in an `Authorization: Bearer <token>` header or the
// `session_token` cookie. The router exposes the following endpoints:
//   - POST /signup: {"email","password","first_name","last_name"}. Only emails
//     an instructor has authorized may sign up; the role comes from the invite.
//   - POST /login: {"email","password"} -> {"token","expires_at","principal"}.
//     The token is also set as the `session_token` cookie and the
//     `X-Session-Token` header. POST /logout revokes it.
//   - GET /office-hours?owner=, GET /office-hours/upcoming?owner=: stored
//     records and their occurrences within the display horizon. TAs see their
//     own; instructors see everyone's or filter by owner.
//   - POST /office-hours: instructor-only direct create using the submission
//     form. DELETE /office-hours/{id} and POST /office-hours/{id}/exceptions
//     {"date"} are open to the owner and instructors.
//   - POST /change-requests: the submission form, a flat object with
//     "ohType" ("temporary" or "recurrence"), "tmpDate" or "dayOfWeek",
//     "startTime", "endTime", "location" and "note".
//   - POST /change-requests/edit {"office_hour_id","date","new_date",
//     "start_time","end_time","location","note"} and POST
//     /change-requests/delete {"office_hour_id","date","note"} target one
//     occurrence.
//   - GET /change-requests?status=, POST /change-requests/{id}/approve and
//     /reject {"note"}: instructor review. GET /change-requests/mine lists the
//     caller's own requests.
//   - GET /tas, POST /tas {"email"}, DELETE /tas/{id}: instructor roster.
//   - GET /calendar.ics: public iCalendar feed of active owners' office hours.
//
// Failures are JSON {"error_code","message","errors"}; field validation
// failures are 422 with per-field messages.
package http
