// Package engine implements the realtime conversation synchronization
// engine: the admin-side component that attaches to a remote append-only
// message log, reconciles replayed history with live incremental delivery,
// and merges optimistic local sends with their eventual remote echoes.
//
// # Pipeline
//
// Every record, regardless of how it arrives, flows through the same three
// stages:
//
//	normalize (message.Normalize) → dedup (dedupe.Index) → ordered merge
//
// The ordered merge keeps the visible sequence non-decreasing by timestamp
// with stable ties, and the dedup index guarantees at most one visible
// message per id. Because history replay, live notifications, and
// optimistic sends all share the pipeline, their interleaving order does
// not matter.
//
// # Optimistic sends
//
// Send pre-allocates the record key the log itself will use, inserts the
// message locally before the remote write, and lets the dedup index absorb
// the remote echo as a no-op. Only a failed primary write retracts the
// message; failed summary writes are swallowed.
//
// # Lifecycle
//
// One subscription is live per engine at most. Open tears down any prior
// subscription and resets all state; Close is idempotent. Deliveries from a
// superseded subscription are discarded by a generation check taken under
// the engine lock, so even notifications already in flight when Close was
// called cannot mutate the session.
package engine
