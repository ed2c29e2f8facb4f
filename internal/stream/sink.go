// Package stream drives scripted output to a host-provided sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joshbot/chatsessions/pkg/types"
)

// ErrUnsupported is returned by a sink that cannot render a part type.
// Callers fall back to plain markdown.
var ErrUnsupported = errors.New("part type not supported by sink")

// Sink receives output parts in emission order.
type Sink interface {
	Emit(ctx context.Context, part types.ResponsePart) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, part types.ResponsePart) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, part types.ResponsePart) error {
	return f(ctx, part)
}

// SinkError reports that the sink failed. It is the only streaming error
// that aborts an operation.
type SinkError struct {
	Part types.PartType
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink failed on %s part: %v", e.Part, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsSinkError checks if an error is a sink failure.
func IsSinkError(err error) bool {
	var se *SinkError
	return errors.As(err, &se)
}

// Recorder is a sink that keeps every part it receives and forwards it to
// an optional next sink. It is used to build response turns from what was
// actually streamed.
type Recorder struct {
	mu    sync.Mutex
	next  Sink
	parts []types.ResponsePart
}

// NewRecorder creates a recorder forwarding to next (which may be nil).
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

// Emit records part after the next sink accepted it.
func (r *Recorder) Emit(ctx context.Context, part types.ResponsePart) error {
	if r.next != nil {
		if err := r.next.Emit(ctx, part); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.parts = append(r.parts, part)
	r.mu.Unlock()
	return nil
}

// Parts returns a copy of the recorded parts.
func (r *Recorder) Parts() []types.ResponsePart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ResponsePart(nil), r.parts...)
}

// Discard is a sink that accepts and drops everything.
var Discard Sink = SinkFunc(func(context.Context, types.ResponsePart) error { return nil })
