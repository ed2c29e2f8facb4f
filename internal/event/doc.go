/*
Package event provides the pub/sub bus that carries session change notifications.

A Bus is owned by whoever wires the application together and is passed to the
components that publish or consume events; there is no package-level bus.

# Event Types

Session Events:
  - session.items.changed: the listed session items changed (create, commit, rename, delete, status)
  - session.committed: one item replaces another in place (untitled commit, rename)
  - session.deleted: a durable session was removed
  - session.options.changed: a session's selected options changed (only non-empty diffs)

Confirmation Events:
  - confirmation.requested: a confirmation was offered in a response
  - confirmation.resolved: an outstanding confirmation was accepted or rejected

# Basic Usage

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.SessionCommitted, func(e event.Event) {
		data := e.Data.(event.SessionCommittedData)
		log.Info().Str("original", data.Original.ID).Str("modified", data.Modified.ID).Msg("committed")
	})
	defer unsubscribe()

	bus.PublishSync(event.Event{Type: event.SessionItemsChanged, Data: event.SessionItemsChangedData{Reason: "create"}})

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. Subscribers MUST complete quickly, use non-blocking channel sends and
never publish re-entrantly.

# Streaming

Every published event is also mirrored as JSON onto a watermill gochannel topic.
Stream subscribes to that topic and yields Envelopes with the data left encoded,
which is what the SSE endpoint forwards to clients.
*/
package event
