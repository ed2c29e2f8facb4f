package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/types"
)

// Step is one scripted emission. Delay is waited before the part is emitted.
type Step struct {
	Delay time.Duration
	Part  types.ResponsePart
}

// Script is an ordered list of steps.
type Script []Step

// Controller emits a script to a sink, honouring cancellation at every
// suspension point.
type Controller struct {
	script Script
	log    zerolog.Logger
}

// NewController creates a controller for script.
func NewController(script Script) *Controller {
	return &Controller{
		script: append(Script(nil), script...),
		log:    logging.Component("stream"),
	}
}

// ProgressScript builds the "n progress steps then a final markdown" script
// used for in-progress sessions.
func ProgressScript(steps int, delay time.Duration, progress func(i, n int) string, final string) Script {
	script := make(Script, 0, steps+1)
	for i := 1; i <= steps; i++ {
		script = append(script, Step{Delay: delay, Part: types.Progress(progress(i, steps))})
	}
	return append(script, Step{Delay: delay, Part: types.Markdown(final)})
}

// Len returns the number of steps.
func (c *Controller) Len() int {
	return len(c.script)
}

// Run emits the script to sink in order. Cancellation is checked before and
// after each wait, so at most the part already being emitted goes out after
// ctx is cancelled; Run then returns ctx.Err(). A sink failure stops the
// run and is returned as *SinkError. A sink answering ErrUnsupported gets
// the part again as markdown.
func (c *Controller) Run(ctx context.Context, sink Sink) error {
	for i, step := range c.script {
		if err := ctx.Err(); err != nil {
			c.log.Debug().Int("step", i).Msg("stream cancelled")
			return err
		}
		if err := wait(ctx, step.Delay); err != nil {
			c.log.Debug().Int("step", i).Msg("stream cancelled during wait")
			return err
		}
		if err := Emit(ctx, sink, step.Part); err != nil {
			return err
		}
	}
	return nil
}

// Emit sends one part to sink with the markdown fallback for unsupported
// part types. Any other sink error is wrapped in *SinkError.
func Emit(ctx context.Context, sink Sink, part types.ResponsePart) error {
	err := sink.Emit(ctx, part)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupported) && part.Type != types.PartMarkdown {
		logging.Warn().
			Str("part", string(part.Type)).
			Msg("sink does not support part type, falling back to markdown")
		fallback := types.Markdown(part.Text)
		if part.Confirmation != nil {
			fallback.Text = part.Confirmation.Title + ": " + part.Confirmation.Message
		}
		if err = sink.Emit(ctx, fallback); err == nil {
			return nil
		}
	}
	return &SinkError{Part: part.Type, Err: err}
}

// wait blocks for d or until ctx is done. The timer is always stopped.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ctx.Err()
	}
}
