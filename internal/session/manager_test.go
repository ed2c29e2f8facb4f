package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/option"
	"github.com/joshbot/chatsessions/internal/stream"
	"github.com/joshbot/chatsessions/pkg/types"
)

// captureSink records every part; it fails every emit when err is set.
type captureSink struct {
	mu    sync.Mutex
	parts []types.ResponsePart
	err   error
}

func (s *captureSink) Emit(_ context.Context, part types.ResponsePart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.parts = append(s.parts, part)
	return nil
}

func (s *captureSink) confirmations() []types.Confirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Confirmation
	for _, p := range s.parts {
		if p.Confirmation != nil {
			out = append(out, *p.Confirmation)
		}
	}
	return out
}

func (s *captureSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []string
	for _, p := range s.parts {
		lines = append(lines, p.Text)
	}
	return strings.Join(lines, "\n")
}

type memPersister struct {
	mu      sync.Mutex
	records map[string]types.SessionRecord
}

func newMemPersister() *memPersister {
	return &memPersister{records: make(map[string]types.SessionRecord)}
}

func (p *memPersister) SaveSession(_ context.Context, rec types.SessionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[rec.Item.ID] = rec
	return nil
}

func (p *memPersister) RemoveSession(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, id)
	return nil
}

func (p *memPersister) LoadSessions(context.Context) ([]types.SessionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.SessionRecord
	for _, rec := range p.records {
		out = append(out, rec)
	}
	return out, nil
}

type staticTools []types.ToolInfo

func (s staticTools) ListTools(context.Context) ([]types.ToolInfo, error) {
	return s, nil
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { _ = bus.Close() })
	if cfg.StepDelay == 0 {
		cfg.StepDelay = time.Millisecond
	}
	return NewManager(option.NewStore(option.NewRegistry(option.DefaultGroups())), bus, cfg)
}

func dispatch(t *testing.T, m *Manager, id string, req types.Request) (types.ResponseMetadata, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	meta, err := m.DispatchRequest(context.Background(), id, req, sink)
	require.NoError(t, err)
	return meta, sink
}

func accept(step types.ConfirmationStep) types.Request {
	return types.Request{Reply: &types.ConfirmationReply{Step: step, Accepted: true}}
}

func TestManager_ListsDemoSessions(t *testing.T) {
	m := newTestManager(t, Config{})

	items := m.ListSessionItems()
	require.Len(t, items, 3)
	assert.Equal(t, DemoReadOnly, items[0].ID)
	assert.Equal(t, DemoInteractive, items[1].ID)
	assert.Equal(t, DemoStreaming, items[2].ID)
	assert.Equal(t, types.StatusInProgress, items[2].Status)
	for _, item := range items {
		assert.Equal(t, types.KindDemo, item.Kind)
	}
}

func TestManager_UntitledCommit(t *testing.T) {
	m := newTestManager(t, Config{})

	var commits []types.CommitData
	m.OnSessionCommitted(func(c types.CommitData) { commits = append(commits, c) })

	placeholder := m.GetSessionContent("new-1")
	assert.Equal(t, types.KindUntitled, placeholder.Kind)
	assert.False(t, placeholder.ReadOnly())
	m.ApplyOptionUpdates(context.Background(), "new-1", []types.OptionUpdate{types.Set("model", "ultra")})

	meta, sink := dispatch(t, m, "new-1", types.Request{Prompt: "hi"})
	assert.Empty(t, meta.Warning)
	confs := sink.confirmations()
	require.Len(t, confs, 1)
	assert.Equal(t, types.StepCreate, confs[0].Step)
	require.Len(t, m.GetSessionContent("new-1").Pending, 1)

	meta, _ = dispatch(t, m, "new-1", accept(types.StepCreate))
	assert.Empty(t, meta.Warning)
	assert.Regexp(t, regexp.MustCompile(`^session-\d+$`), meta.ModifiedID)

	require.Len(t, commits, 1)
	assert.Equal(t, "new-1", commits[0].Original.ID)
	assert.Equal(t, placeholder.Item.Epoch, commits[0].Original.Epoch)
	assert.Equal(t, meta.ModifiedID, commits[0].Modified.ID)

	items := m.ListSessionItems()
	last := items[len(items)-1]
	assert.Equal(t, meta.ModifiedID, last.ID)
	assert.Equal(t, types.StatusCompleted, last.Status)
	assert.Equal(t, "hi", last.Label)

	// Options moved with the session.
	assert.Equal(t, map[string]string{"model": "ultra"}, m.GetSessionContent(meta.ModifiedID).Options)
	assert.Empty(t, m.GetSessionContent("new-1").Options)
	assert.Empty(t, m.GetSessionContent("new-1").Pending)
}

func TestManager_UntitledReject(t *testing.T) {
	m := newTestManager(t, Config{})
	committed := 0
	m.OnSessionCommitted(func(types.CommitData) { committed++ })

	dispatch(t, m, "new-1", types.Request{Prompt: "hi"})
	reply := accept(types.StepCreate)
	reply.Reply.Accepted = false
	_, sink := dispatch(t, m, "new-1", reply)

	assert.Contains(t, sink.text(), "Session creation cancelled.")
	assert.Equal(t, 0, committed)
	assert.Len(t, m.ListSessionItems(), 3)

	// Resolved exactly once.
	meta, sink := dispatch(t, m, "new-1", accept(types.StepCreate))
	assert.Contains(t, meta.Warning, "No create confirmation is outstanding")
	require.Len(t, sink.parts, 1)
	assert.Equal(t, types.PartWarning, sink.parts[0].Type)
}

func TestManager_CommitRejectsStalePlaceholder(t *testing.T) {
	m := newTestManager(t, Config{})
	committed := 0
	m.OnSessionCommitted(func(types.CommitData) { committed++ })

	dispatch(t, m, "new-1", types.Request{Prompt: "hi"})
	m.placeholders.Delete("new-1")
	m.GetSessionContent("new-1")

	meta, _ := dispatch(t, m, "new-1", accept(types.StepCreate))
	assert.Contains(t, meta.Warning, "changed or expired")
	assert.Equal(t, 0, committed)
}

func TestManager_CommitSkipsTakenIDs(t *testing.T) {
	m := newTestManager(t, Config{})
	first := m.CreateSession(context.Background(), "")
	assert.Equal(t, "session-1", first.ID)
	assert.Equal(t, "🆕 Session 1", first.Label)

	m.GetSessionContent("session-2")
	second := m.CreateSession(context.Background(), "named")
	assert.Equal(t, "session-3", second.ID)
	assert.Equal(t, "named", second.Label)
}

func TestManager_UntitledOptionsReserveID(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := context.Background()

	m.ApplyOptionUpdates(ctx, "session-1", []types.OptionUpdate{types.Set("model", "pro")})

	created := m.CreateSession(ctx, "fresh")
	assert.NotEqual(t, "session-1", created.ID)
	assert.Empty(t, m.GetSessionContent(created.ID).Options)
	assert.Equal(t, map[string]string{"model": "pro"}, m.GetSessionContent("session-1").Options)
}

func TestManager_CommitWithoutOptionsStartsEmpty(t *testing.T) {
	m := newTestManager(t, Config{})

	// Options left under the next free id without a placeholder.
	m.options.ApplyUpdates("session-1", []types.OptionUpdate{types.Set("subagent", "summarizer")})

	dispatch(t, m, "new-1", types.Request{Prompt: "hi"})
	meta, _ := dispatch(t, m, "new-1", accept(types.StepCreate))
	require.NotEmpty(t, meta.ModifiedID)

	assert.NotEqual(t, "session-1", meta.ModifiedID)
	assert.Empty(t, m.GetSessionContent(meta.ModifiedID).Options)
}

func TestManager_ExpiredPlaceholderDropsOptions(t *testing.T) {
	m := newTestManager(t, Config{UntitledTTL: 20 * time.Millisecond})
	ctx := context.Background()
	committed := 0
	m.OnSessionCommitted(func(types.CommitData) { committed++ })

	dispatch(t, m, "new-1", types.Request{Prompt: "hi"})
	m.ApplyOptionUpdates(ctx, "new-1", []types.OptionUpdate{types.Set("model", "pro")})
	require.Equal(t, map[string]string{"model": "pro"}, m.options.Get("new-1"))

	require.Eventually(t, func() bool {
		return !m.options.Has("new-1")
	}, 2*time.Second, 10*time.Millisecond)

	meta, _ := dispatch(t, m, "new-1", accept(types.StepCreate))
	assert.Contains(t, meta.Warning, "changed or expired")
	assert.Equal(t, 0, committed)
	assert.Len(t, m.ListSessionItems(), 3)
}

func TestManager_SaveRacingDeleteLeavesNoRecord(t *testing.T) {
	mem := newMemPersister()
	m := newTestManager(t, Config{Persister: mem})
	ctx := context.Background()
	item := m.CreateSession(ctx, "")
	require.Contains(t, mem.records, item.ID)

	gated := &gatedPersister{memPersister: mem, entered: make(chan struct{}), release: make(chan struct{})}
	m.persist = gated

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, m.ClearHistory(ctx, item.ID))
	}()
	<-gated.entered

	go func() {
		defer wg.Done()
		assert.True(t, m.DeleteSession(ctx, item.ID))
	}()
	require.Eventually(t, func() bool {
		_, ok := m.item(item.ID)
		return !ok
	}, time.Second, time.Millisecond)

	close(gated.release)
	wg.Wait()

	mem.mu.Lock()
	defer mem.mu.Unlock()
	assert.NotContains(t, mem.records, item.ID)
}

// gatedPersister holds the first save until release is closed.
type gatedPersister struct {
	*memPersister
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) SaveSession(ctx context.Context, rec types.SessionRecord) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.memPersister.SaveSession(ctx, rec)
}

func TestManager_RenameScenario(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := context.Background()
	m.CreateSession(ctx, "")
	target := m.CreateSession(ctx, "")
	require.Equal(t, "session-2", target.ID)

	var commits []types.CommitData
	m.OnSessionCommitted(func(c types.CommitData) { commits = append(commits, c) })

	_, sink := dispatch(t, m, "session-2", types.Request{Prompt: "/rename Release notes"})
	confs := sink.confirmations()
	require.Len(t, confs, 1)
	assert.Equal(t, types.StepRename, confs[0].Step)
	assert.Equal(t, "🆕 Session 2", confs[0].Payload["currentLabel"])

	_, sink = dispatch(t, m, "session-2", types.Request{Reply: &types.ConfirmationReply{
		ID: confs[0].ID, Step: types.StepRename, Accepted: true,
	}})
	assert.Contains(t, sink.text(), "Release notes")

	require.Len(t, commits, 1)
	assert.Equal(t, "🆕 Session 2", commits[0].Original.Label)
	assert.Equal(t, "Release notes", commits[0].Modified.Label)
	assert.Greater(t, commits[0].Modified.Epoch, commits[0].Original.Epoch)

	var labels []string
	for _, item := range m.ListSessionItems() {
		if item.ID == "session-2" {
			labels = append(labels, item.Label)
		}
	}
	assert.Equal(t, []string{"Release notes"}, labels)
}

func TestManager_RenameRequiresLabel(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	dispatch(t, m, item.ID, types.Request{Prompt: "/rename"})
	meta, _ := dispatch(t, m, item.ID, accept(types.StepRename))
	assert.Contains(t, meta.Warning, "label is required")

	_, err := m.RenameSession(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DeleteIsIdempotent(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := context.Background()
	item := m.CreateSession(ctx, "")

	deleted := 0
	m.bus.Subscribe(event.SessionDeleted, func(event.Event) { deleted++ })

	assert.True(t, m.DeleteSession(ctx, item.ID))
	assert.False(t, m.DeleteSession(ctx, item.ID))
	assert.False(t, m.DeleteSession(ctx, "never-existed"))
	assert.False(t, m.DeleteSession(ctx, DemoInteractive))
	assert.Equal(t, 1, deleted)
	assert.Len(t, m.ListSessionItems(), 3)

	// Deleted ids fall back to an untitled placeholder.
	assert.Equal(t, types.KindUntitled, m.GetSessionContent(item.ID).Kind)
}

func TestManager_ReadOnlyRejectsRequests(t *testing.T) {
	m := newTestManager(t, Config{})

	content := m.GetSessionContent(DemoReadOnly)
	assert.True(t, content.ReadOnly())
	assert.True(t, content.OptionsHidden)
	assert.Len(t, content.History, 2)

	meta, sink := dispatch(t, m, DemoReadOnly, types.Request{Prompt: "hello"})
	assert.Contains(t, meta.Warning, "read-only")
	require.Len(t, sink.parts, 1)
	assert.Equal(t, types.PartWarning, sink.parts[0].Type)

	assert.Nil(t, m.ApplyOptionUpdates(context.Background(), DemoReadOnly, []types.OptionUpdate{types.Set("model", "pro")}))
}

func TestManager_InteractiveDemoEchoes(t *testing.T) {
	m := newTestManager(t, Config{})

	_, sink := dispatch(t, m, DemoInteractive, types.Request{Prompt: "hello"})
	assert.Equal(t, []types.ResponsePart{types.Markdown("**Echo:** hello")}, sink.parts)

	// Demo content is fixed.
	assert.Empty(t, m.GetSessionContent(DemoInteractive).History)
}

func TestManager_ManageOffersSeveralConfirmations(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := context.Background()
	item := m.CreateSession(ctx, "Notes")
	dispatch(t, m, item.ID, types.Request{Prompt: "hello"})

	_, sink := dispatch(t, m, item.ID, types.Request{Prompt: "/manage"})
	confs := sink.confirmations()
	require.Len(t, confs, 3)
	assert.Len(t, m.GetSessionContent(item.ID).Pending, 3)

	_, sink = dispatch(t, m, item.ID, types.Request{Reply: &types.ConfirmationReply{
		Step: types.StepRename, Accepted: true, Data: map[string]string{"label": "Renamed"},
	}})
	assert.Contains(t, sink.text(), "Renamed")

	_, sink = dispatch(t, m, item.ID, accept(types.StepExport))
	out := sink.text()
	assert.Contains(t, out, "```md")
	assert.Contains(t, out, "# Renamed")
	assert.Contains(t, out, "**New session echo:** hello")

	require.Len(t, m.GetSessionContent(item.ID).Pending, 1)
	dispatch(t, m, item.ID, accept(types.StepDelete))
	assert.Len(t, m.ListSessionItems(), 3)
}

func TestManager_UnknownStep(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	meta, sink := dispatch(t, m, item.ID, accept("teleport"))
	assert.Contains(t, meta.Warning, `Unknown confirmation step "teleport"`)
	assert.Equal(t, types.PartWarning, sink.parts[0].Type)
}

func TestManager_ReplyIDMustMatch(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")
	dispatch(t, m, item.ID, types.Request{Prompt: "/ping"})

	meta, _ := dispatch(t, m, item.ID, types.Request{Reply: &types.ConfirmationReply{ID: "bogus", Step: types.StepPing, Accepted: true}})
	assert.NotEmpty(t, meta.Warning)

	meta, sink := dispatch(t, m, item.ID, accept(types.StepPing))
	assert.Empty(t, meta.Warning)
	assert.Contains(t, sink.text(), "Pong")
}

func TestManager_ClearHistoryKeepsHandler(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")
	dispatch(t, m, item.ID, types.Request{Prompt: "one"})
	dispatch(t, m, item.ID, types.Request{Prompt: "/clear"})

	dispatch(t, m, item.ID, accept(types.StepClearHistory))
	content := m.GetSessionContent(item.ID)
	assert.Empty(t, content.History)
	assert.NotNil(t, content.Handler)

	_, sink := dispatch(t, m, item.ID, types.Request{Prompt: "two"})
	assert.Contains(t, sink.text(), "**New session echo:** two")
	assert.Len(t, m.GetSessionContent(item.ID).History, 2)

	assert.ErrorIs(t, m.ClearHistory(context.Background(), DemoReadOnly), ErrNotFound)
}

func TestManager_HistoryIsAppendOnly(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	dispatch(t, m, item.ID, types.Request{Prompt: "first"})
	dispatch(t, m, item.ID, types.Request{Prompt: "second"})

	history := m.GetSessionContent(item.ID).History
	require.Len(t, history, 4)
	assert.Equal(t, "first", history[0].Prompt)
	assert.Equal(t, types.RoleResponse, history[1].Role)
	assert.Equal(t, "second", history[2].Prompt)
}

func TestManager_UnknownCommandWarns(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	meta, _ := dispatch(t, m, item.ID, types.Request{Prompt: "/dance"})
	assert.Contains(t, meta.Warning, "Unknown command /dance")

	meta, _ = dispatch(t, m, item.ID, types.Request{Prompt: "/export pdf"})
	assert.Contains(t, meta.Warning, "unsupported format")
}

func TestManager_SinkFailureMarksFailed(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	boom := errors.New("connection reset")
	_, err := m.DispatchRequest(context.Background(), item.ID, types.Request{Prompt: "hi"}, &captureSink{err: boom})
	require.Error(t, err)
	assert.True(t, stream.IsSinkError(err))
	assert.ErrorIs(t, err, boom)

	failed, _ := m.item(item.ID)
	assert.Equal(t, types.StatusFailed, failed.Status)

	dispatch(t, m, item.ID, types.Request{Prompt: "again"})
	recovered, _ := m.item(item.ID)
	assert.Equal(t, types.StatusCompleted, recovered.Status)
}

func TestManager_RunActiveResponse(t *testing.T) {
	m := newTestManager(t, Config{})

	sink := &captureSink{}
	meta, err := m.RunActiveResponse(context.Background(), DemoStreaming, sink)
	require.NoError(t, err)
	assert.False(t, meta.Cancelled)
	require.Len(t, sink.parts, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, types.PartProgress, sink.parts[i].Type)
	}
	assert.Equal(t, types.Markdown("✅ Complete!"), sink.parts[3])

	meta, err = m.RunActiveResponse(context.Background(), DemoInteractive, &captureSink{})
	require.NoError(t, err)
	assert.Contains(t, meta.Warning, "no active response")
	assert.False(t, m.GetSessionContent(DemoInteractive).View().HasActiveResponse)
}

func TestManager_RunActiveResponseCancelled(t *testing.T) {
	m := newTestManager(t, Config{StepDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &captureSink{}
	meta, err := m.RunActiveResponse(ctx, DemoStreaming, sink)
	require.NoError(t, err)
	assert.True(t, meta.Cancelled)
	assert.Empty(t, sink.parts)
}

func TestManager_StreamingDemoHandler(t *testing.T) {
	m := newTestManager(t, Config{})

	_, sink := dispatch(t, m, DemoStreaming, types.Request{Prompt: "go"})
	assert.Equal(t, []types.ResponsePart{types.Markdown("**Processing:** go")}, sink.parts)
}

func TestManager_OptionUpdatesPublishDiff(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := context.Background()
	item := m.CreateSession(ctx, "")

	var published []event.SessionOptionsChangedData
	m.bus.Subscribe(event.SessionOptionsChanged, func(e event.Event) {
		published = append(published, e.Data.(event.SessionOptionsChangedData))
	})

	changed := m.ApplyOptionUpdates(ctx, item.ID, []types.OptionUpdate{types.Set("model", "pro"), types.Set("subagent", "summarizer")})
	assert.Equal(t, []string{"model", "subagent"}, changed)
	assert.Nil(t, m.ApplyOptionUpdates(ctx, item.ID, []types.OptionUpdate{types.Set("model", "pro")}))

	require.Len(t, published, 1)
	assert.Equal(t, map[string]string{"model": "pro", "subagent": "summarizer"}, published[0].Options)
	assert.Equal(t, published[0].Options, m.GetSessionContent(item.ID).Options)
}

func TestManager_ToolsCommand(t *testing.T) {
	m := newTestManager(t, Config{Tools: staticTools{
		{Server: "github", Name: "search_repositories", Description: "Search repositories"},
	}})
	item := m.CreateSession(context.Background(), "")

	_, sink := dispatch(t, m, item.ID, types.Request{Prompt: "/tools"})
	assert.Contains(t, sink.text(), "**github/search_repositories**: Search repositories")

	bare := newTestManager(t, Config{})
	other := bare.CreateSession(context.Background(), "")
	_, sink = dispatch(t, bare, other.ID, types.Request{Prompt: "/tools"})
	assert.Contains(t, sink.text(), "No tool servers")
}

func TestManager_PersistAndRestore(t *testing.T) {
	p := newMemPersister()
	m := newTestManager(t, Config{Persister: p})
	ctx := context.Background()

	m.CreateSession(ctx, "")
	keep := m.CreateSession(ctx, "keep")
	drop := m.CreateSession(ctx, "drop")
	m.ApplyOptionUpdates(ctx, keep.ID, []types.OptionUpdate{types.Set("model", "ultra")})
	dispatch(t, m, keep.ID, types.Request{Prompt: "remember me"})
	m.DeleteSession(ctx, drop.ID)

	restoredM := newTestManager(t, Config{Persister: p})
	n, err := restoredM.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	content := restoredM.GetSessionContent(keep.ID)
	assert.Equal(t, types.KindDynamic, content.Kind)
	assert.Equal(t, "keep", content.Item.Label)
	assert.Equal(t, map[string]string{"model": "ultra"}, content.Options)
	require.Len(t, content.History, 2)
	assert.Equal(t, "remember me", content.History[0].Prompt)

	next := restoredM.CreateSession(ctx, "")
	assert.Equal(t, "session-3", next.ID)
}

func TestManager_RequestWaitsForSessionLock(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	unlock, err := m.lockSession(context.Background(), item.ID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	meta, err := m.DispatchRequest(ctx, item.ID, types.Request{Prompt: "hi"}, &captureSink{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, meta.Cancelled)
}

func TestManager_SameSessionRequestsAreSerialised(t *testing.T) {
	m := newTestManager(t, Config{})
	item := m.CreateSession(context.Background(), "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.DispatchRequest(context.Background(), item.ID, types.Request{Prompt: "x"}, &captureSink{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := m.GetSessionContent(item.ID).History
	require.Len(t, history, 40)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, types.RoleRequest, history[i].Role)
		assert.Equal(t, types.RoleResponse, history[i+1].Role)
	}
	m.locksMu.Lock()
	assert.Empty(t, m.locks)
	m.locksMu.Unlock()
}

func TestLabelFromPrompt(t *testing.T) {
	assert.Equal(t, "🆕 Session 4", labelFromPrompt("  ", 4))
	assert.Equal(t, "first line", labelFromPrompt("first line\nsecond", 1))
	long := strings.Repeat("a", 50)
	assert.Equal(t, strings.Repeat("a", 40)+"…", labelFromPrompt(long, 1))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		prompt, cmd, arg string
	}{
		{"hello", "", ""},
		{"/ping", "ping", ""},
		{"/Rename  New name ", "rename", "New name"},
		{"  /export yaml", "export", "yaml"},
	}
	for _, tt := range tests {
		cmd, arg := parseCommand(tt.prompt)
		assert.Equal(t, tt.cmd, cmd, tt.prompt)
		assert.Equal(t, tt.arg, arg, tt.prompt)
	}
}
