package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joshbot/chatsessions/internal/event"
)

// SSEEvent is the wire form of a notification: {"type": ..., "properties": ...}.
type SSEEvent struct {
	Type       event.EventType `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// SSEHeartbeatInterval is the interval for SSE heartbeats.
var SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent writes one SSE event and flushes it.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// sessionProbe picks the session id out of any event payload.
type sessionProbe struct {
	SessionID string `json:"sessionID"`
	Info      *struct {
		ID string `json:"id"`
	} `json:"info"`
	Original *struct {
		ID string `json:"id"`
	} `json:"original"`
}

// eventBelongsToSession reports whether env concerns sessionID. List
// changes concern every session.
func eventBelongsToSession(env event.Envelope, sessionID string) bool {
	if env.Type == event.SessionItemsChanged {
		return true
	}
	var probe sessionProbe
	if err := json.Unmarshal(env.Data, &probe); err != nil {
		return false
	}
	switch {
	case probe.SessionID != "":
		return probe.SessionID == sessionID
	case probe.Info != nil:
		return probe.Info.ID == sessionID
	case probe.Original != nil:
		return probe.Original.ID == sessionID
	}
	return false
}

// events handles GET /event. With ?sessionID= only events concerning that
// session (and list changes) are sent.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	envelopes, err := s.bus.Stream(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Explicitly write status and flush headers immediately
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent("message", SSEEvent{Type: "server.connected", Properties: json.RawMessage("{}")}); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			if sessionID != "" && !eventBelongsToSession(env, sessionID) {
				continue
			}
			if err := sse.writeEvent("message", SSEEvent{Type: env.Type, Properties: env.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
