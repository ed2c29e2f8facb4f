package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/export"
	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/internal/stream"
	"github.com/joshbot/chatsessions/pkg/types"
)

// DispatchRequest handles an inbound request for id, writing output to sink.
// Requests for the same id are handled one at a time in arrival order.
//
// Invalid transitions and unknown sessions are written to sink as a warning
// and reported in the metadata. Cancellation stops the request early and
// sets Cancelled. The only error returned is a *stream.SinkError (or the
// context error when ctx ends before the request was admitted).
func (m *Manager) DispatchRequest(ctx context.Context, id string, req types.Request, sink stream.Sink) (types.ResponseMetadata, error) {
	unlock, err := m.lockSession(ctx, id)
	if err != nil {
		return types.ResponseMetadata{SessionID: id, Cancelled: true}, err
	}
	defer unlock()

	rec := stream.NewRecorder(sink)

	var meta types.ResponseMetadata
	if req.Reply != nil {
		meta, err = m.resolve(ctx, id, *req.Reply, rec)
	} else {
		meta, err = m.handle(ctx, id, req, rec)
	}
	if meta.SessionID == "" {
		meta.SessionID = id
	}

	meta, err = m.settle(ctx, id, rec, meta, err)

	// Only prompts are recorded; confirmation replies act on the session
	// (delete, clear) rather than add to it.
	if req.Reply == nil && m.repo.Kind(id) == types.KindDynamic {
		now := time.Now().UnixMilli()
		turns := []types.Turn{types.RequestTurn(Participant, req.Prompt, now)}
		if parts := rec.Parts(); len(parts) > 0 {
			turns = append(turns, types.ResponseTurn(Participant, parts, now))
		}
		if aerr := m.repo.Append(id, turns...); aerr == nil {
			m.save(ctx, id)
		}
	}
	return meta, err
}

// RunActiveResponse drives the active response of an in-progress session
// into sink. Error handling follows DispatchRequest.
func (m *Manager) RunActiveResponse(ctx context.Context, id string, sink stream.Sink) (types.ResponseMetadata, error) {
	c := m.GetSessionContent(id)
	meta := types.ResponseMetadata{SessionID: id}

	var err error
	if c.ActiveResponse == nil {
		err = &TransitionError{SessionID: id, Reason: "This session has no active response."}
	} else {
		err = c.ActiveResponse.Run(ctx, sink)
	}
	return m.settle(ctx, id, sink, meta, err)
}

// settle maps the outcome of a request onto metadata.
func (m *Manager) settle(ctx context.Context, id string, sink stream.Sink, meta types.ResponseMetadata, err error) (types.ResponseMetadata, error) {
	switch {
	case err == nil:
		if m.repo.Kind(id) == types.KindDynamic {
			m.setStatus(ctx, id, types.StatusCompleted)
		}
		return meta, nil

	case stream.IsSinkError(err):
		m.log.Error().Err(err).Str(logging.FieldSession, id).Msg("sink failed, response aborted")
		m.setStatus(context.WithoutCancel(ctx), id, types.StatusFailed)
		return meta, err

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.log.Debug().Str(logging.FieldSession, id).Msg("request cancelled")
		meta.Cancelled = true
		return meta, nil
	}

	if !IsTransitionError(err) && !errors.Is(err, ErrNotFound) {
		m.log.Warn().Err(err).Str(logging.FieldSession, id).Msg("request failed")
	} else {
		m.log.Debug().Err(err).Str(logging.FieldSession, id).Msg("request rejected")
	}
	meta.Warning = warningText(err)
	if werr := stream.Emit(ctx, sink, types.Warning(meta.Warning)); werr != nil {
		return m.settle(ctx, id, sink, meta, werr)
	}
	return meta, nil
}

func (m *Manager) handle(ctx context.Context, id string, req types.Request, sink stream.Sink) (types.ResponseMetadata, error) {
	c := m.GetSessionContent(id)
	switch {
	case c.Kind == types.KindUntitled:
		meta := types.ResponseMetadata{SessionID: id, Command: string(types.StepCreate)}
		return meta, m.offer(ctx, id, sink, CreateConfirmation{Epoch: c.Item.Epoch, Prompt: req.Prompt})
	case c.Handler == nil:
		return types.ResponseMetadata{SessionID: id}, &TransitionError{SessionID: id, Reason: "This session is read-only."}
	default:
		return c.Handler(ctx, req, sink)
	}
}

// offer registers confirmations as outstanding for id and emits them.
// A confirmation replaces an outstanding one with the same step.
func (m *Manager) offer(ctx context.Context, id string, sink stream.Sink, confirmations ...Confirmation) error {
	offered := make([]pendingConfirmation, 0, len(confirmations))
	m.mu.Lock()
	byStep, ok := m.pending[id]
	if !ok {
		byStep = make(map[types.ConfirmationStep]pendingConfirmation)
		m.pending[id] = byStep
	}
	for _, c := range confirmations {
		p := newPending(c)
		byStep[c.Step()] = p
		offered = append(offered, p)
	}
	m.mu.Unlock()

	for _, p := range offered {
		wire := p.wire()
		m.bus.PublishSync(event.Event{
			Type: event.ConfirmationRequested,
			Data: event.ConfirmationRequestedData{SessionID: id, Confirmation: wire},
		})
		part := types.ResponsePart{Type: types.PartConfirmation, Text: wire.Message, Confirmation: &wire}
		if err := stream.Emit(ctx, sink, part); err != nil {
			return err
		}
	}
	return nil
}

// resolve answers an outstanding confirmation of id.
func (m *Manager) resolve(ctx context.Context, id string, reply types.ConfirmationReply, sink stream.Sink) (types.ResponseMetadata, error) {
	meta := types.ResponseMetadata{SessionID: id, Command: string(reply.Step)}
	if !knownStep(reply.Step) {
		return meta, &TransitionError{SessionID: id, Step: reply.Step, Reason: fmt.Sprintf("Unknown confirmation step %q.", reply.Step)}
	}

	m.mu.Lock()
	p, ok := m.pending[id][reply.Step]
	if !ok || (reply.ID != "" && reply.ID != p.id) {
		m.mu.Unlock()
		return meta, &TransitionError{
			SessionID: id,
			Step:      reply.Step,
			Reason:    fmt.Sprintf("No %s confirmation is outstanding for this session.", reply.Step),
		}
	}
	delete(m.pending[id], reply.Step)
	if len(m.pending[id]) == 0 {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Str(logging.FieldStep, string(reply.Step)).Bool("accepted", reply.Accepted).Msg("confirmation resolved")
	m.bus.PublishSync(event.Event{
		Type: event.ConfirmationResolved,
		Data: event.ConfirmationResolvedData{SessionID: id, ID: p.id, Step: reply.Step, Accepted: reply.Accepted},
	})

	if !reply.Accepted {
		msg := p.wire().Title + " cancelled."
		if reply.Step == types.StepCreate {
			msg = "Session creation cancelled."
		}
		return meta, stream.Emit(ctx, sink, types.Markdown(msg))
	}

	switch c := p.c.(type) {
	case CreateConfirmation:
		return m.commit(ctx, id, c, sink)

	case PingConfirmation:
		return meta, stream.Emit(ctx, sink, types.Markdown("🏓 Pong!"))

	case DeleteConfirmation:
		if !m.DeleteSession(ctx, c.SessionID) {
			return meta, ErrNotFound
		}
		return meta, stream.Emit(ctx, sink, types.Markdown("🗑️ Session deleted."))

	case RenameConfirmation:
		label := strings.TrimSpace(reply.Data["label"])
		if label == "" {
			label = c.NewLabel
		}
		commit, err := m.RenameSession(ctx, c.SessionID, label)
		if err != nil {
			return meta, err
		}
		return meta, stream.Emit(ctx, sink, types.Markdown(fmt.Sprintf("✏️ Renamed to **%s**.", commit.Modified.Label)))

	case ExportConfirmation:
		return meta, m.exportSession(ctx, c, sink)

	case ClearHistoryConfirmation:
		if err := m.ClearHistory(ctx, c.SessionID); err != nil {
			return meta, err
		}
		return meta, stream.Emit(ctx, sink, types.Markdown("🧹 History cleared."))

	default:
		return meta, fmt.Errorf("unhandled confirmation %T", c)
	}
}

// commit promotes the untitled placeholder untitledID into a durable
// session. The placeholder must still carry the epoch the confirmation was
// issued for.
func (m *Manager) commit(ctx context.Context, untitledID string, c CreateConfirmation, sink stream.Sink) (types.ResponseMetadata, error) {
	meta := types.ResponseMetadata{SessionID: untitledID, Command: string(types.StepCreate)}

	m.mu.Lock()
	v, ok := m.placeholders.Get(untitledID)
	original, _ := v.(types.SessionItem)
	if !ok || original.Epoch != c.Epoch {
		m.mu.Unlock()
		return meta, &TransitionError{
			SessionID: untitledID,
			Step:      types.StepCreate,
			Reason:    "The untitled session changed or expired before it was created.",
		}
	}

	id, n := m.nextIDLocked()
	now := time.Now().UnixMilli()
	item := types.SessionItem{
		ID:     id,
		Label:  labelFromPrompt(c.Prompt, n),
		Status: types.StatusCompleted,
		Kind:   types.KindDynamic,
		Epoch:  m.nextEpochLocked(),
		Time:   types.SessionTime{Created: now, Updated: now},
	}
	created := types.Markdown(fmt.Sprintf("✅ Created session **%s**.", item.Label))

	m.options.Transfer(untitledID, id)
	history := []types.Turn{
		types.RequestTurn(Participant, c.Prompt, now),
		types.ResponseTurn(Participant, []types.ResponsePart{created}, now),
	}
	_ = m.repo.Store(id, Content{History: history, Handler: m.dynamicHandler(id)})
	m.addItemLocked(item)
	m.placeholders.Delete(untitledID)
	delete(m.pending, untitledID)
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Str("from", untitledID).Msg("untitled session committed")
	m.bus.PublishSync(event.Event{Type: event.SessionCommitted, Data: types.CommitData{Original: original, Modified: item}})
	m.itemsChanged("commit")
	m.save(ctx, id)

	meta.ModifiedID = id
	return meta, stream.Emit(ctx, sink, created)
}

// dynamicHandler answers prompts of dynamic sessions: slash commands offer
// confirmations, anything else is echoed.
func (m *Manager) dynamicHandler(id string) RequestHandler {
	return func(ctx context.Context, req types.Request, sink stream.Sink) (types.ResponseMetadata, error) {
		cmd, arg := parseCommand(req.Prompt)
		meta := types.ResponseMetadata{SessionID: id, Command: cmd}

		switch cmd {
		case "":
			return meta, stream.Emit(ctx, sink, types.Markdown("**New session echo:** "+req.Prompt))
		case "delete":
			return meta, m.offer(ctx, id, sink, DeleteConfirmation{SessionID: id})
		case "rename":
			item, _ := m.item(id)
			return meta, m.offer(ctx, id, sink, RenameConfirmation{SessionID: id, CurrentLabel: item.Label, NewLabel: arg})
		case "export":
			format := strings.ToLower(arg)
			if format == "" {
				format = "markdown"
			}
			if _, err := export.NewExporter(format); err != nil {
				return meta, &TransitionError{SessionID: id, Step: types.StepExport, Reason: "Cannot export: " + err.Error() + "."}
			}
			return meta, m.offer(ctx, id, sink, ExportConfirmation{SessionID: id, Format: format})
		case "clear":
			return meta, m.offer(ctx, id, sink, ClearHistoryConfirmation{SessionID: id})
		case "ping":
			return meta, m.offer(ctx, id, sink, PingConfirmation{})
		case "manage":
			item, _ := m.item(id)
			return meta, m.offer(ctx, id, sink,
				DeleteConfirmation{SessionID: id},
				RenameConfirmation{SessionID: id, CurrentLabel: item.Label},
				ExportConfirmation{SessionID: id, Format: "markdown"},
			)
		case "tools":
			return meta, m.listTools(ctx, sink)
		default:
			return meta, &TransitionError{SessionID: id, Reason: fmt.Sprintf("Unknown command /%s.", cmd)}
		}
	}
}

func (m *Manager) exportSession(ctx context.Context, c ExportConfirmation, sink stream.Sink) error {
	content := m.GetSessionContent(c.SessionID)
	if content.Kind != types.KindDynamic {
		return ErrNotFound
	}
	exporter, err := export.NewExporter(c.Format)
	if err != nil {
		return &TransitionError{SessionID: c.SessionID, Step: types.StepExport, Reason: "Cannot export: " + err.Error() + "."}
	}

	var buf bytes.Buffer
	if err := exporter.Export(export.NewDocument(content.View(), time.Now()), &buf); err != nil {
		return fmt.Errorf("export %s: %w", c.SessionID, err)
	}
	text := fmt.Sprintf("📦 Exported **%s** as %s:\n\n```%s\n%s```", content.Item.Label, c.Format, exporter.Extension(), buf.String())
	return stream.Emit(ctx, sink, types.Markdown(text))
}

func (m *Manager) listTools(ctx context.Context, sink stream.Sink) error {
	if m.tools == nil {
		return stream.Emit(ctx, sink, types.Markdown("No tool servers are configured."))
	}
	if err := stream.Emit(ctx, sink, types.Progress("Loading tool catalog...")); err != nil {
		return err
	}
	tools, err := m.tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🧰 %d tools available:\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(&sb, "\n- **%s/%s**", t.Server, t.Name)
		if t.Description != "" {
			sb.WriteString(": " + t.Description)
		}
	}
	return stream.Emit(ctx, sink, types.Markdown(sb.String()))
}

// parseCommand splits "/name args" into name and args. Prompts that are
// not commands return an empty name.
func parseCommand(prompt string) (string, string) {
	prompt = strings.TrimSpace(prompt)
	if !strings.HasPrefix(prompt, "/") {
		return "", ""
	}
	name, arg, _ := strings.Cut(prompt[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}
