// Package session implements the chat session registry and the session
// lifecycle state machine.
//
// # Architecture Overview
//
// The package is built around two components:
//
//   - Repository: owns the content of every session (history, request
//     handler, active response) and dispatches lookups by session kind
//   - Manager: owns the listed session items, the untitled placeholders and
//     the outstanding confirmations, and drives every transition
//
// Option values are owned by internal/option; session content only carries a
// read-through snapshot of them.
//
// # Session Kinds
//
//	demo      fixed content, synthesized on every lookup, never deleted
//	dynamic   created at runtime, either directly or by committing a placeholder
//	untitled  placeholder for any id that is neither demo nor dynamic
//
// # Lifecycle
//
// An untitled placeholder that receives a message answers with a "create"
// confirmation. Accepting it commits the placeholder:
//
//	new-1 (untitled) --create accepted--> session-<n> (dynamic, completed)
//
// The commit transfers the placeholder's options to the new id and publishes
// a session.committed event carrying the placeholder as Original and the new
// item as Modified. The confirmation records the placeholder's epoch; a
// commit against a placeholder that changed or expired since is rejected.
//
// Dynamic sessions understand a small set of commands, each of which answers
// with a confirmation that is resolved by a later request:
//
//	/delete               delete the session
//	/rename <label>       rename the session
//	/export [format]      export history as json, yaml or markdown
//	/clear                clear history
//	/ping                 round trip check
//	/manage               offer delete, rename and export together
//	/tools                list the tool catalog
//
// # Errors
//
// Lookups never fail: unknown ids resolve to untitled placeholders. Invalid
// transitions (read-only sessions, confirmations that are not outstanding,
// unknown steps) are written to the sink as warning parts and reported in
// ResponseMetadata.Warning. Only sink failures are returned as errors.
//
// # Thread Safety
//
// Manager methods are safe for concurrent use. Requests for the same session
// id are processed one at a time in arrival order; requests for different
// ids run independently. Events are published after all locks are released.
package session
