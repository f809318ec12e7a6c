// ABOUTME: In-process ConversationLog used by tests and the CLI demo mode
// ABOUTME: Keeps records per conversation in insertion order with broadcast on write

package chatlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is an in-process ConversationLog. It mirrors the semantics of
// the SQLite log (keyed writes, bounded recency reads, record-added fan-out)
// without touching disk.
type MemoryLog struct {
	mu          sync.Mutex
	records     map[string]map[string]Record // conversationID -> recordID -> record
	order       map[string][]string          // conversationID -> record ids in first-write order
	summaries   map[string]map[string]string // conversationID -> summary key -> value
	broadcaster *Broadcaster
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog(logger *slog.Logger) *MemoryLog {
	return &MemoryLog{
		records:     make(map[string]map[string]Record),
		order:       make(map[string][]string),
		summaries:   make(map[string]map[string]string),
		broadcaster: NewBroadcaster(logger),
	}
}

// NewRecordID allocates a record key using the same generator the SQLite
// log uses for its own keys.
func (m *MemoryLog) NewRecordID() string {
	return uuid.New().String()
}

// ListRecent returns up to limit of the most recently written records.
func (m *MemoryLog) ListRecent(_ context.Context, conversationID string, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.order[conversationID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.records[conversationID][id])
	}
	return out, nil
}

// Subscribe registers for record-added notifications on the conversation.
func (m *MemoryLog) Subscribe(ctx context.Context, conversationID string) (<-chan Notification, string, error) {
	ch, subID := m.broadcaster.Subscribe(ctx, conversationID)
	return ch, subID, nil
}

// Unsubscribe detaches a live subscription.
func (m *MemoryLog) Unsubscribe(conversationID, subID string) {
	m.broadcaster.Unsubscribe(conversationID, subID)
}

// PutRecord stores rec at its client-chosen key and notifies subscribers.
// Writing an existing key replaces the record but keeps its position.
func (m *MemoryLog) PutRecord(_ context.Context, conversationID string, rec Record) error {
	m.mu.Lock()
	if _, ok := m.records[conversationID]; !ok {
		m.records[conversationID] = make(map[string]Record)
	}
	if _, exists := m.records[conversationID][rec.ID]; !exists {
		m.order[conversationID] = append(m.order[conversationID], rec.ID)
	}
	m.records[conversationID][rec.ID] = rec
	m.mu.Unlock()

	m.broadcaster.Publish(conversationID, Notification{Record: rec})
	return nil
}

// SetLastMessage updates the conversation's last-message summary.
func (m *MemoryLog) SetLastMessage(_ context.Context, conversationID, text string, _ time.Time) error {
	m.setSummary(conversationID, "last_message", text)
	return nil
}

// SetLastRead updates the last-read timestamp for one sender.
func (m *MemoryLog) SetLastRead(_ context.Context, conversationID, senderID string, at time.Time) error {
	m.setSummary(conversationID, "last_read:"+senderID, at.UTC().Format(time.RFC3339Nano))
	return nil
}

func (m *MemoryLog) setSummary(conversationID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.summaries[conversationID]; !ok {
		m.summaries[conversationID] = make(map[string]string)
	}
	m.summaries[conversationID][key] = value
}

// Close shuts down the broadcaster.
func (m *MemoryLog) Close() error {
	m.broadcaster.Close()
	return nil
}
