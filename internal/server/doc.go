// Package server exposes the session manager over HTTP.
//
// # API Endpoints
//
//	GET    /session                  list session items
//	POST   /session                  create a session {label}
//	GET    /session/{id}             session content (unknown ids are untitled)
//	PATCH  /session/{id}             rename {label}
//	DELETE /session/{id}             delete
//	POST   /session/{id}/clear       clear history
//	PATCH  /session/{id}/options     apply [OptionUpdate]
//	POST   /session/{id}/message     dispatch a request, streamed
//	POST   /session/{id}/active      run the active response, streamed
//	GET    /option                   option groups
//	GET    /tool                     tool catalog
//	POST   /tool/{server}/{tool}     call a tool with an argument object
//	GET    /event                    server-sent events
//
// # Streamed Responses
//
// Message and active-response endpoints reply with newline-delimited JSON
// (application/x-ndjson). Every line is a StreamFrame sharing one
// responseID, also sent in the X-Response-ID header. Part frames come
// first in emission order, then exactly one frame carrying metadata or an
// error. If the client disconnects mid-response the request is cancelled
// and no closing frame is written.
//
// # Events
//
// GET /event subscribes to the event bus stream and writes each event as
// an SSE "message" whose data is {"type": ..., "properties": ...}. The
// first event is server.connected. Heartbeat comments are sent every
// SSEHeartbeatInterval. The optional sessionID query parameter filters
// out events about other sessions; session.items.changed is always sent.
//
// # Errors
//
// Non-streamed errors use the envelope {"error": {"code", "message",
// "details"}}. Unknown sessions map to 404 NOT_FOUND and invalid
// transitions to 409 INVALID_TRANSITION.
package server
