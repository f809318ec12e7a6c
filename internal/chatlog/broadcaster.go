// ABOUTME: In-memory fan-out of record-added notifications to live subscribers
// ABOUTME: Keyed by conversation id; non-blocking publish drops on slow subscribers

package chatlog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber. Deliveries
// beyond a full buffer are dropped rather than blocking the writer.
const subscriberBufferSize = 64

// Broadcaster fans out Notifications to every live subscriber of a
// conversation. Log backends publish through it after a successful write so
// that subscribers observe records in commit order.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Notification // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Notification),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for record-added notifications on the
// given conversation. Returns the delivery channel and a subscription id for
// later Unsubscribe. The subscription is cleaned up automatically when ctx
// is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan Notification, string) {
	subID := uuid.New().String()
	ch := make(chan Notification, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan Notification)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends a notification to all subscribers of the conversation.
// Non-blocking: notifications are dropped for subscribers whose channels
// are full.
func (b *Broadcaster) Publish(conversationID string, n Notification) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy channels under the read lock to avoid holding it during sends
	targets := make([]chan Notification, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- n:
		default:
			b.logger.Debug("dropped notification for slow subscriber",
				"conversation_id", conversationID,
				"record_id", n.Record.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids
// are a no-op.
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conversationID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("broadcaster closed")
}
