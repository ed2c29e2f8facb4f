// Package event provides a pub/sub event system using watermill.
package event

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/joshbot/chatsessions/internal/logging"
)

// EventType represents the type of event.
type EventType string

const (
	SessionItemsChanged   EventType = "session.items.changed"
	SessionCommitted      EventType = "session.committed"
	SessionDeleted        EventType = "session.deleted"
	SessionOptionsChanged EventType = "session.options.changed"
	ConfirmationRequested EventType = "confirmation.requested"
	ConfirmationResolved  EventType = "confirmation.resolved"
)

const (
	// streamTopic is the watermill topic every published event is mirrored to.
	streamTopic = "chatsessions.events"
	// seqKey is the message metadata key carrying the mirror sequence number.
	seqKey = "seq"
	// streamBuffer is how many events a Stream consumer may fall behind
	// before it is disconnected.
	streamBuffer = 64
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Envelope is an event as received from Stream, with its data left encoded.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// anyEvent keys the subscribers registered through SubscribeAll.
const anyEvent EventType = "*"

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus delivers events to in-process subscribers by direct call, which keeps
// the Data payload typed, and mirrors each event as JSON onto a watermill
// gochannel topic for streaming consumers such as SSE.
type Bus struct {
	mu sync.RWMutex

	pubsub      *gochannel.GoChannel
	subscribers map[EventType][]subscriberEntry

	// mirrorMu orders mirrored messages: seq is assigned and published
	// under it.
	mirrorMu sync.Mutex
	seq      uint64

	nextID atomic.Uint64
	closed bool
	log    zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
		log:         logging.Component("event"),
	}
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	return b.add(eventType, fn)
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.add(anyEvent, fn)
}

func (b *Bus) add(key EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	id := b.nextID.Add(1)
	b.subscribers[key] = append(b.subscribers[key], subscriberEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(key, id) })
	}
}

func (b *Bus) remove(key EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[key]
	for i, entry := range subs {
		if entry.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, key)
	} else {
		b.subscribers[key] = subs
	}
}

// collect snapshots the subscribers for an event under the read lock,
// type-specific subscribers first.
func (b *Bus) collect(eventType EventType) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, false
	}
	specific, all := b.subscribers[eventType], b.subscribers[anyEvent]
	subs := make([]Subscriber, 0, len(specific)+len(all))
	for _, entry := range specific {
		subs = append(subs, entry.fn)
	}
	for _, entry := range all {
		subs = append(subs, entry.fn)
	}
	return subs, true
}

// Publish sends an event to all subscribers asynchronously.
// Each subscriber is called in its own goroutine.
func (b *Bus) Publish(event Event) {
	subs, ok := b.collect(event.Type)
	if !ok {
		return
	}
	for _, sub := range subs {
		go sub(event)
	}
	b.mirror(event)
}

// PublishSync sends an event to all subscribers synchronously.
// All subscribers are called in the current goroutine before returning.
func (b *Bus) PublishSync(event Event) {
	subs, ok := b.collect(event.Type)
	if !ok {
		return
	}
	for _, sub := range subs {
		sub(event)
	}
	b.mirror(event)
}

func (b *Bus) mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mirrorMu.Lock()
	defer b.mirrorMu.Unlock()
	b.seq++
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(seqKey, strconv.FormatUint(b.seq, 10))
	_ = b.pubsub.Publish(streamTopic, msg)
}

// streamed is a mirrored event waiting for its turn; ok is false when the
// payload could not be decoded and the slot is only skipped.
type streamed struct {
	env Envelope
	ok  bool
}

// Stream returns a channel of JSON envelopes for every event published
// after the call, in publish order. gochannel hands each message to the
// consumer from its own goroutine, so envelopes are put back in order by
// their sequence number. Messages are acked on receipt and publishers never
// wait for a consumer: one that falls streamBuffer events behind is
// disconnected. The channel is closed when ctx is done, the consumer is
// disconnected or the bus closes.
func (b *Bus) Stream(ctx context.Context) (<-chan Envelope, error) {
	subCtx, cancel := context.WithCancel(ctx)

	b.mirrorMu.Lock()
	msgs, err := b.pubsub.Subscribe(subCtx, streamTopic)
	next := b.seq + 1
	b.mirrorMu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Envelope, streamBuffer)
	go func() {
		defer close(out)
		defer cancel()

		waiting := make(map[uint64]streamed)
		for msg := range msgs {
			msg.Ack()
			seq, err := strconv.ParseUint(msg.Metadata.Get(seqKey), 10, 64)
			if err != nil || seq < next {
				continue
			}
			var env Envelope
			decodeErr := json.Unmarshal(msg.Payload, &env)
			waiting[seq] = streamed{env: env, ok: decodeErr == nil}

			for {
				item, found := waiting[next]
				if !found {
					break
				}
				delete(waiting, next)
				next++
				if !item.ok {
					continue
				}
				select {
				case out <- item.env:
				default:
					b.log.Warn().Uint64("seq", next-1).Msg("disconnecting slow event stream consumer")
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.mu.Unlock()

	return b.pubsub.Close()
}
