// Package chatlog defines the remote conversation log the sync engine
// attaches to, and its backends.
//
// # Contract
//
// A ConversationLog is an append-only, multi-writer message store addressed
// by conversation id. It supports four primitives:
//
//   - a bounded point-in-time read of the most recent records (ListRecent)
//   - a live subscription to record-added notifications (Subscribe)
//   - a write at a client-chosen unique key (PutRecord)
//   - auxiliary summary writes (SetLastMessage, SetLastRead)
//
// Records are schemaless: Fields carries whatever the writer stored, and
// field-name resolution happens downstream in the message normalizer.
//
// Every successful PutRecord is delivered to every live subscriber of that
// conversation, including the writer's own subscription. Duplicate delivery
// relative to history replay is expected and handled by the engine's dedup
// index.
//
// # Backends
//
// SQLiteLog is the durable single-host backend (modernc.org/sqlite, WAL
// mode, automatic schema). MemoryLog mirrors its semantics in-process for
// tests and the CLI demo mode. Both share the Broadcaster for commit-order
// fan-out.
package chatlog
