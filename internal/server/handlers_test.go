package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/option"
	"github.com/joshbot/chatsessions/internal/session"
	"github.com/joshbot/chatsessions/internal/toolcatalog"
	"github.com/joshbot/chatsessions/pkg/types"
)

type fakeTools struct {
	tools []types.ToolInfo
}

func (f *fakeTools) ListTools(context.Context) ([]types.ToolInfo, error) {
	return f.tools, nil
}

func (f *fakeTools) CallTool(_ context.Context, server, tool string, args map[string]any) (types.ToolResult, error) {
	if server != "github" {
		return types.ToolResult{}, fmt.Errorf("%w: %s", toolcatalog.ErrServerNotFound, server)
	}
	return types.ToolResult{Server: server, Name: tool, Text: fmt.Sprintf("called with %v", args["owner"])}, nil
}

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	manager := session.NewManager(
		option.NewStore(option.NewRegistry(option.DefaultGroups())),
		bus,
		session.Config{StepDelay: time.Millisecond},
	)
	tools := &fakeTools{tools: []types.ToolInfo{{Server: "github", Name: "get_issue", Description: "Get an issue"}}}

	srv := New(&Config{EnableCORS: true}, manager, bus, tools)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// readFrames reads a streamed response to the end.
func readFrames(t *testing.T, resp *http.Response) []StreamFrame {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var frames []StreamFrame
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var f StreamFrame
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &f))
		assert.Equal(t, resp.Header.Get("X-Response-ID"), f.ResponseID)
		frames = append(frames, f)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, frames)
	return frames
}

func TestListSessions_Demos(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	items := decode[[]types.SessionItem](t, resp)
	require.Len(t, items, 3)
	assert.Equal(t, session.DemoReadOnly, items[0].ID)
	assert.Equal(t, session.DemoInteractive, items[1].ID)
	assert.Equal(t, session.DemoStreaming, items[2].ID)
	assert.Equal(t, types.StatusInProgress, items[2].Status)
}

func TestCreateSession(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/session", CreateSessionRequest{Label: "Planning"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	item := decode[types.SessionItem](t, resp)
	assert.Equal(t, "session-1", item.ID)
	assert.Equal(t, "Planning", item.Label)
	assert.Equal(t, types.KindDynamic, item.Kind)

	// empty body gets a numbered default label
	resp = doJSON(t, http.MethodPost, ts.URL+"/session", nil)
	item = decode[types.SessionItem](t, resp)
	assert.Equal(t, "session-2", item.ID)
	assert.Equal(t, "🆕 Session 2", item.Label)

	resp = doJSON(t, http.MethodGet, ts.URL+"/session", nil)
	assert.Len(t, decode[[]types.SessionItem](t, resp), 5)
}

func TestCreateSession_InvalidBody(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/session", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidRequest, decode[ErrorResponse](t, resp).Error.Code)
}

func TestGetSession(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/session/readonly", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[types.SessionView](t, resp)
	assert.True(t, view.ReadOnly)
	assert.True(t, view.OptionsHidden)
	assert.Len(t, view.History, 2)

	resp = doJSON(t, http.MethodGet, ts.URL+"/session/untitled-7", nil)
	view = decode[types.SessionView](t, resp)
	assert.Equal(t, types.KindUntitled, view.Item.Kind)
	assert.Equal(t, "untitled-7", view.Item.ID)
	assert.False(t, view.ReadOnly)
}

func TestRenameSession(t *testing.T) {
	_, ts := setupTestServer(t)
	created := decode[types.SessionItem](t, doJSON(t, http.MethodPost, ts.URL+"/session", nil))

	resp := doJSON(t, http.MethodPatch, ts.URL+"/session/"+created.ID, RenameSessionRequest{Label: "Renamed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	commit := decode[types.CommitData](t, resp)
	assert.Equal(t, created.Label, commit.Original.Label)
	assert.Equal(t, "Renamed", commit.Modified.Label)
	assert.Equal(t, created.ID, commit.Modified.ID)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/session/"+created.ID, RenameSessionRequest{Label: "  "})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidTransition, decode[ErrorResponse](t, resp).Error.Code)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/session/nope", RenameSessionRequest{Label: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	_, ts := setupTestServer(t)
	created := decode[types.SessionItem](t, doJSON(t, http.MethodPost, ts.URL+"/session", nil))

	resp := doJSON(t, http.MethodDelete, ts.URL+"/session/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/session/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "second delete is a no-op")

	resp = doJSON(t, http.MethodDelete, ts.URL+"/session/readonly", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "demo sessions cannot be deleted")
}

func TestClearHistory(t *testing.T) {
	_, ts := setupTestServer(t)
	created := decode[types.SessionItem](t, doJSON(t, http.MethodPost, ts.URL+"/session", nil))
	readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/"+created.ID+"/message", types.Request{Prompt: "hello"}))

	view := decode[types.SessionView](t, doJSON(t, http.MethodGet, ts.URL+"/session/"+created.ID, nil))
	require.Len(t, view.History, 2)

	resp := doJSON(t, http.MethodPost, ts.URL+"/session/"+created.ID+"/clear", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[types.SessionView](t, doJSON(t, http.MethodGet, ts.URL+"/session/"+created.ID, nil))
	assert.Empty(t, view.History)

	resp = doJSON(t, http.MethodPost, ts.URL+"/session/readonly/clear", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateOptions(t *testing.T) {
	_, ts := setupTestServer(t)

	updates := []types.OptionUpdate{types.Set("model", "pro"), types.Set("bogus", "x")}
	resp := doJSON(t, http.MethodPatch, ts.URL+"/session/interactive/options", updates)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[OptionsResponse](t, resp)
	assert.Equal(t, []string{"model"}, result.Changed)
	assert.Equal(t, "pro", result.Options["model"])

	// same value again changes nothing
	result = decode[OptionsResponse](t, doJSON(t, http.MethodPatch, ts.URL+"/session/interactive/options", updates))
	assert.Empty(t, result.Changed)

	// hidden options ignore updates
	result = decode[OptionsResponse](t, doJSON(t, http.MethodPatch, ts.URL+"/session/readonly/options", updates))
	assert.Empty(t, result.Changed)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/session/interactive/options", map[string]string{"model": "pro"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_Echo(t *testing.T) {
	_, ts := setupTestServer(t)

	frames := readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/interactive/message", types.Request{Prompt: "hi there"}))
	require.Len(t, frames, 2)
	require.NotNil(t, frames[0].Part)
	assert.Equal(t, "**Echo:** hi there", frames[0].Part.Text)
	require.NotNil(t, frames[1].Metadata)
	assert.Equal(t, "interactive", frames[1].Metadata.SessionID)
	assert.Empty(t, frames[1].Metadata.Warning)
}

func TestSendMessage_ReadOnly(t *testing.T) {
	_, ts := setupTestServer(t)

	frames := readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/readonly/message", types.Request{Prompt: "hi"}))
	require.Len(t, frames, 2)
	assert.Equal(t, types.PartWarning, frames[0].Part.Type)
	assert.Equal(t, "⚠️ This session is read-only.", frames[1].Metadata.Warning)
}

func TestSendMessage_Validation(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/session/interactive/message", types.Request{Prompt: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Post(ts.URL+"/session/interactive/message", "application/json", strings.NewReader("["))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_UntitledCommit(t *testing.T) {
	_, ts := setupTestServer(t)

	frames := readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/untitled-1/message", types.Request{Prompt: "Plan my trip"}))
	require.Len(t, frames, 2)
	require.NotNil(t, frames[0].Part.Confirmation)
	assert.Equal(t, types.StepCreate, frames[0].Part.Confirmation.Step)
	assert.Equal(t, string(types.StepCreate), frames[1].Metadata.Command)

	reply := types.Request{Reply: &types.ConfirmationReply{ID: frames[0].Part.Confirmation.ID, Step: types.StepCreate, Accepted: true}}
	frames = readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/untitled-1/message", reply))
	last := frames[len(frames)-1]
	require.NotNil(t, last.Metadata)
	assert.Equal(t, "session-1", last.Metadata.ModifiedID)

	items := decode[[]types.SessionItem](t, doJSON(t, http.MethodGet, ts.URL+"/session", nil))
	require.Len(t, items, 4)
	assert.Equal(t, "session-1", items[3].ID)
}

func TestRunActiveResponse(t *testing.T) {
	_, ts := setupTestServer(t)

	frames := readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/streaming/active", nil))
	require.Len(t, frames, 5)
	for i := 0; i < 3; i++ {
		assert.Equal(t, types.PartProgress, frames[i].Part.Type)
		assert.Equal(t, fmt.Sprintf("⏳ Processing step %d/3...", i+1), frames[i].Part.Text)
	}
	assert.Equal(t, "✅ Complete!", frames[3].Part.Text)
	assert.False(t, frames[4].Metadata.Cancelled)

	frames = readFrames(t, doJSON(t, http.MethodPost, ts.URL+"/session/interactive/active", nil))
	require.Len(t, frames, 2)
	assert.Equal(t, "⚠️ This session has no active response.", frames[1].Metadata.Warning)
}

func TestListOptionGroups(t *testing.T) {
	_, ts := setupTestServer(t)

	groups := decode[[]types.OptionGroup](t, doJSON(t, http.MethodGet, ts.URL+"/option", nil))
	require.Len(t, groups, 2)
	assert.Equal(t, "model", groups[0].ID)
	assert.Equal(t, "subagent", groups[1].ID)
}

func TestTools(t *testing.T) {
	_, ts := setupTestServer(t)

	tools := decode[[]types.ToolInfo](t, doJSON(t, http.MethodGet, ts.URL+"/tool", nil))
	require.Len(t, tools, 1)
	assert.Equal(t, "get_issue", tools[0].Name)

	resp := doJSON(t, http.MethodPost, ts.URL+"/tool/github/get_issue", map[string]any{"owner": "joshbot"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "called with joshbot", decode[types.ToolResult](t, resp).Text)

	resp = doJSON(t, http.MethodPost, ts.URL+"/tool/jira/list", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTools_NoCatalog(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	manager := session.NewManager(option.NewStore(option.NewRegistry(option.DefaultGroups())), bus, session.Config{})
	srv := New(nil, manager, bus, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tool", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tool/github/get_issue", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	_, ts := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/session", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
