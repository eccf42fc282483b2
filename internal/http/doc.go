// Package http provides HTTP handlers and middleware for the attendance API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","user"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - POST /sessions/refresh: rotates the current session token.
//   - DELETE /sessions/current: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and clears the cookie.
//   - GET /me: the authenticated user with the derived status of the current day.
//   - POST /zone/check: geofence pre-check. Body: {"latitude","longitude"}.
//   - POST /scans: registers an entry or exit. Body: {"payload","latitude","longitude"}.
//   - GET /records, GET /records/history, GET /records/{id}, PATCH /records/{id},
//     POST /records/{id}/submit, POST /records/{id}/validate: attendance records
//     exchanging the `recordDTO` payload defined in attendance_handler.go.
//   - GET /users, POST /users, PATCH /users/{id}, DELETE /users/{id}: manager
//     controlled user management exchanging the `userDTO` payload defined in
//     user_handler.go.
//   - GET /kiosk/code: the QR payload a kiosk should display, managers only.
//   - GET /healthz: liveness with a store ping.
//
// Error bodies carry an `error_code`, a message localized in French or English
// (negotiated from `?lang=` or Accept-Language) and per-field validation details.
package http
