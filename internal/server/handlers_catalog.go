package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joshbot/chatsessions/internal/toolcatalog"
	"github.com/joshbot/chatsessions/pkg/types"
)

// listOptionGroups handles GET /option
func (s *Server) listOptionGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.OptionGroups())
}

// listTools handles GET /tool
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		writeJSON(w, http.StatusOK, []types.ToolInfo{})
		return
	}

	tools, err := s.tools.ListTools(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	}
	if tools == nil {
		tools = []types.ToolInfo{}
	}
	writeJSON(w, http.StatusOK, tools)
}

// callTool handles POST /tool/{server}/{tool}. The body is the argument
// object and may be empty.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "No tool servers are configured")
		return
	}

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body: expected an argument object")
		return
	}

	result, err := s.tools.CallTool(r.Context(), chi.URLParam(r, "server"), chi.URLParam(r, "tool"), args)
	if err != nil {
		if errors.Is(err, toolcatalog.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, ErrCodeToolError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
