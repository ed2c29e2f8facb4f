package session

import (
	"context"
	"fmt"
	"time"

	"github.com/joshbot/chatsessions/internal/stream"
	"github.com/joshbot/chatsessions/pkg/types"
)

// Participant is the name responses are attributed to.
const Participant = "joshbot"

// Demo is a static session with fixed content.
type Demo struct {
	Item           types.SessionItem
	History        []types.Turn
	Handler        RequestHandler
	ActiveResponse *stream.Controller
	HideOptions    bool
}

// Demo session ids.
const (
	DemoReadOnly    = "readonly"
	DemoInteractive = "interactive"
	DemoStreaming   = "streaming"
)

// DemoSessions returns the built-in demo catalog. stepDelay paces the
// streaming session.
func DemoSessions(stepDelay time.Duration) []Demo {
	created := time.Now().UnixMilli()
	greeting := types.ResponseTurn(Participant, []types.ResponsePart{types.Markdown("Hello! I'm JoshBot.")}, created)

	item := func(id, label string, status types.SessionStatus) types.SessionItem {
		return types.SessionItem{
			ID:     id,
			Label:  label,
			Status: status,
			Kind:   types.KindDemo,
			Time:   types.SessionTime{Created: created, Updated: created},
		}
	}

	return []Demo{
		{
			Item: item(DemoReadOnly, "📖 Read-only History", types.StatusCompleted),
			History: []types.Turn{
				types.RequestTurn(Participant, "What can you do?", created),
				greeting,
			},
			HideOptions: true,
		},
		{
			Item:    item(DemoInteractive, "💬 Interactive Chat", types.StatusCompleted),
			Handler: echoHandler(DemoInteractive, "**Echo:** "),
		},
		{
			Item: item(DemoStreaming, "⚡ Live Streaming", types.StatusInProgress),
			History: []types.Turn{
				types.RequestTurn(Participant, "Start streaming", created),
				greeting,
			},
			Handler: func(ctx context.Context, req types.Request, sink stream.Sink) (types.ResponseMetadata, error) {
				c := stream.NewController(stream.Script{
					{Delay: stepDelay, Part: types.Markdown("**Processing:** " + req.Prompt)},
				})
				return types.ResponseMetadata{SessionID: DemoStreaming}, c.Run(ctx, sink)
			},
			ActiveResponse: stream.NewController(stream.ProgressScript(3, stepDelay,
				func(i, n int) string { return fmt.Sprintf("⏳ Processing step %d/%d...", i, n) },
				"✅ Complete!",
			)),
		},
	}
}

func echoHandler(sessionID, prefix string) RequestHandler {
	return func(ctx context.Context, req types.Request, sink stream.Sink) (types.ResponseMetadata, error) {
		return types.ResponseMetadata{SessionID: sessionID}, stream.Emit(ctx, sink, types.Markdown(prefix+req.Prompt))
	}
}
