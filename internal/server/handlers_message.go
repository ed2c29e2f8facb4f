package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/joshbot/chatsessions/internal/stream"
	"github.com/joshbot/chatsessions/pkg/types"
)

// StreamFrame is one line of a streamed response. Parts arrive in emission
// order; the final frame carries either the metadata or an error.
type StreamFrame struct {
	ResponseID string                  `json:"responseID"`
	Part       *types.ResponsePart     `json:"part,omitempty"`
	Metadata   *types.ResponseMetadata `json:"metadata,omitempty"`
	Error      *ErrorDetail            `json:"error,omitempty"`
}

// lineSink writes every part as a JSON line and flushes it immediately.
type lineSink struct {
	mu         sync.Mutex
	enc        *json.Encoder
	rc         *http.ResponseController
	responseID string
}

func newLineSink(w http.ResponseWriter, responseID string) *lineSink {
	return &lineSink{enc: json.NewEncoder(w), rc: http.NewResponseController(w), responseID: responseID}
}

// Emit implements stream.Sink.
func (s *lineSink) Emit(ctx context.Context, part types.ResponsePart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(StreamFrame{ResponseID: s.responseID, Part: &part})
}

func (s *lineSink) write(frame StreamFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(frame); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// streamResponse prepares w for a chunked JSON-lines response, runs fn
// against it and writes the closing frame.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, fn func(stream.Sink) (types.ResponseMetadata, error)) {
	responseID := ulid.Make().String()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Response-ID", responseID)
	w.WriteHeader(http.StatusOK)

	sink := newLineSink(w, responseID)
	meta, err := fn(sink)
	if err != nil {
		if stream.IsSinkError(err) {
			// The client is gone or the connection broke; nothing more can be written.
			s.log.Debug().Err(err).Str("response", responseID).Msg("streamed response aborted")
			return
		}
		sink.write(StreamFrame{ResponseID: responseID, Error: &ErrorDetail{Code: ErrCodeUnavailable, Message: err.Error()}})
		return
	}
	sink.write(StreamFrame{ResponseID: responseID, Metadata: &meta})
}

// sendMessage handles POST /session/{sessionID}/message
// This is a streaming endpoint that returns JSON lines.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req types.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Reply == nil && strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt or reply is required")
		return
	}

	s.streamResponse(w, r, func(sink stream.Sink) (types.ResponseMetadata, error) {
		return s.manager.DispatchRequest(r.Context(), sessionID, req, sink)
	})
}

// runActiveResponse handles POST /session/{sessionID}/active
func (s *Server) runActiveResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	s.streamResponse(w, r, func(sink stream.Sink) (types.ResponseMetadata, error) {
		return s.manager.RunActiveResponse(r.Context(), sessionID, sink)
	})
}
