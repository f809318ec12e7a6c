// ABOUTME: Remote conversation log contract shared by the engine and its backends
// ABOUTME: Defines schemaless Records, subscription Notifications, and the ConversationLog interface

package chatlog

import (
	"context"
	"time"
)

// Record is one raw entry in a conversation log. The backing store is
// schemaless from the engine's point of view: Fields carries whatever the
// writer stored, and the normalizer resolves field aliases downstream.
type Record struct {
	ID     string
	Fields map[string]any
}

// Notification is one delivery from a live subscription. Either Record is
// populated or Err carries an asynchronous listener failure. Listener
// failures do not terminate the subscription.
type Notification struct {
	Record Record
	Err    error
}

// ConversationLog is the remote append-only multi-writer message log for
// support conversations. Implementations deliver a record-added notification
// to every live subscriber of a conversation, including for records written
// by the subscribing client itself; the engine's dedup index absorbs those
// echoes.
type ConversationLog interface {
	// NewRecordID allocates a unique record key. Clients pre-allocate keys
	// for their own writes, so an optimistic local insert and its remote
	// echo share the same id and reconcile by identity.
	NewRecordID() string

	// ListRecent returns up to limit of the most recent records for the
	// conversation. Delivery order within the result is unspecified.
	ListRecent(ctx context.Context, conversationID string, limit int) ([]Record, error)

	// Subscribe registers for record-added notifications on the
	// conversation. The returned id is passed to Unsubscribe; the channel
	// is closed on unsubscribe or when ctx is cancelled.
	Subscribe(ctx context.Context, conversationID string) (<-chan Notification, string, error)

	// Unsubscribe detaches a live subscription and closes its channel.
	Unsubscribe(conversationID, subID string)

	// PutRecord stores a record at its client-chosen key.
	PutRecord(ctx context.Context, conversationID string, rec Record) error

	// SetLastMessage updates the conversation's last-message summary.
	SetLastMessage(ctx context.Context, conversationID, text string, at time.Time) error

	// SetLastRead updates the last-read timestamp for one sender.
	SetLastRead(ctx context.Context, conversationID, senderID string, at time.Time) error

	// Close releases backend resources.
	Close() error
}
