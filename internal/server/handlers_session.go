package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joshbot/chatsessions/pkg/types"
)

// CreateSessionRequest is the body of POST /session.
type CreateSessionRequest struct {
	Label string `json:"label"`
}

// RenameSessionRequest is the body of PATCH /session/{sessionID}.
type RenameSessionRequest struct {
	Label string `json:"label"`
}

// OptionsResponse is returned by PATCH /session/{sessionID}/options.
type OptionsResponse struct {
	Changed []string          `json:"changed"`
	Options map[string]string `json:"options"`
}

// listSessions handles GET /session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListSessionItems())
}

// createSession handles POST /session. The body is optional.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	item := s.manager.CreateSession(r.Context(), req.Label)
	writeJSON(w, http.StatusOK, item)
}

// getSession handles GET /session/{sessionID}. Unknown ids resolve to an
// untitled placeholder.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	content := s.manager.GetSessionContent(sessionID)
	writeJSON(w, http.StatusOK, content.View())
}

// renameSession handles PATCH /session/{sessionID}
func (s *Server) renameSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req RenameSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	commit, err := s.manager.RenameSession(r.Context(), sessionID, req.Label)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !s.manager.DeleteSession(r.Context(), sessionID) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found or not deletable")
		return
	}
	writeSuccess(w)
}

// clearHistory handles POST /session/{sessionID}/clear
func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.manager.ClearHistory(r.Context(), sessionID); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

// updateOptions handles PATCH /session/{sessionID}/options. Updates naming
// unknown groups or items are ignored.
func (s *Server) updateOptions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var updates []types.OptionUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body: expected an array of option updates")
		return
	}

	changed := s.manager.ApplyOptionUpdates(r.Context(), sessionID, updates)
	if changed == nil {
		changed = []string{}
	}
	options := s.manager.GetSessionContent(sessionID).Options
	if options == nil {
		options = map[string]string{}
	}
	writeJSON(w, http.StatusOK, OptionsResponse{Changed: changed, Options: options})
}
