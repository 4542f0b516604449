// Package http exposes the availability, capability and planning facades
// over a chi router.
//
// Read endpoints are open. Mutating endpoints require an admin bearer token
// when a bcrypt hash is configured.
//
//   - POST /resources/{id}/slots: creates free segments. Body: {"from","to","parent_id"}.
//   - POST /resources/{id}/slots/recurring: creates free segments for every window of a daily or
//     weekly rule. Body: {"from","to","parent_id","frequency","weekdays","start_time","duration","time_zone"}.
//   - POST /resources/{id}/block|release|disable|enable: changes every segment of
//     {"from","to"} for {"owner"}. Answers {"result": true}, or 409 with
//     {"result": false} when the change is refused.
//   - GET /resources/{id}/availability, GET /parents/{id}/availability: the rows
//     inside ?from=&to= (RFC 3339).
//   - GET /resources/{id}/calendar, GET /calendars?resource_id=...: owner calendars.
//   - POST /resources/{id}/capabilities, GET /capabilities, POST /allocations:
//     the capability catalog and allocation of free entries.
//   - GET /projects, POST /projects, GET /projects/{id}, PUT /projects/{id}/stages,
//     POST /projects/{id}/demands, POST /projects/{id}/critical-stages,
//     POST /projects/{id}/schedule, POST /projects/{id}/feasibility: planning.
//   - GET /healthz, GET /metrics.
//
// Validation failures answer 422 with per-field messages, unknown entities 404
// and conflicts 409.
package http
