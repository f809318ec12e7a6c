// ABOUTME: Realtime conversation synchronization engine
// ABOUTME: Merges history replay, live deliveries, and optimistic local sends into one ordered sequence

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundhive/chatsync/internal/chatlog"
	"github.com/soundhive/chatsync/internal/dedupe"
	"github.com/soundhive/chatsync/internal/message"
)

// DefaultHistoryLimit bounds the one-time history replay performed on Open.
// Very long conversations replay only their most recent records.
const DefaultHistoryLimit = 500

// Engine synchronizes one conversation at a time against a ConversationLog.
// It owns the session state and the dedup index exclusively; consumers read
// snapshots and call Open, Send, and Close.
//
// At most one subscription is live per engine instance. Every delivery path
// (history replay, live notification, optimistic send) funnels through the
// same normalize → dedup → ordered-merge pipeline, which is what makes their
// arbitrary interleaving safe.
type Engine struct {
	log          chatlog.ConversationLog
	index        *dedupe.Index
	historyLimit int
	logger       *slog.Logger

	mu         sync.Mutex
	generation uint64
	session    Session
	subID      string
	subCancel  context.CancelFunc
}

// New creates an engine over the given log. historyLimit <= 0 selects
// DefaultHistoryLimit. Pass nil logger for default.
func New(log chatlog.ConversationLog, historyLimit int, logger *slog.Logger) *Engine {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		log:          log,
		index:        dedupe.New(),
		historyLimit: historyLimit,
		logger:       logger.With("component", "engine"),
	}
}

// Snapshot returns the current session state. The returned value shares its
// backing arrays with the engine, which is safe because entries are replaced
// rather than mutated; the slices themselves are new values after every
// change.
func (e *Engine) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Open attaches the engine to a conversation. Any previously open
// subscription is fully detached first, and all session state and the dedup
// index are reset, so no ordering or dedup guarantee spans an open/open
// boundary.
//
// History replay failures are non-fatal: the error is surfaced on the
// session and the live listener is attached anyway, on the premise that a
// conversation without history still beats no conversation. A failed
// listener attach is surfaced on the session and returned.
func (e *Engine) Open(ctx context.Context, conversationID string, participants []message.Participant) error {
	e.mu.Lock()
	e.detachLocked()
	e.generation++
	gen := e.generation
	e.index.Reset()
	e.session = Session{
		ConversationID: conversationID,
		Loading:        true,
		Participants:   message.BuildRoster(participants),
	}
	e.mu.Unlock()

	// One-time bounded history replay. Records arrive in whatever order the
	// backend returns them; the ordered merge makes the final sequence
	// correct regardless.
	records, err := e.log.ListRecent(ctx, conversationID, e.historyLimit)
	if err != nil {
		e.logger.Warn("history replay failed",
			"conversation_id", conversationID,
			"error", err)
		e.setErrorIfCurrent(gen, fmt.Sprintf("could not load history: %v", err))
	} else {
		for _, rec := range records {
			e.ingest(gen, rec)
		}
	}

	subCtx, cancel := context.WithCancel(context.Background())
	ch, subID, err := e.log.Subscribe(subCtx, conversationID)
	if err != nil {
		cancel()
		e.mu.Lock()
		if gen == e.generation {
			e.session.Loading = false
			e.session.Error = fmt.Sprintf("could not subscribe to updates: %v", err)
		}
		e.mu.Unlock()
		return fmt.Errorf("attaching listener: %w", err)
	}

	e.mu.Lock()
	if gen != e.generation {
		// A concurrent Open or Close superseded this attach.
		e.mu.Unlock()
		cancel()
		e.log.Unsubscribe(conversationID, subID)
		return nil
	}
	e.subID = subID
	e.subCancel = cancel
	e.session.Loading = false
	e.mu.Unlock()

	go e.consume(gen, conversationID, ch)

	e.logger.Debug("conversation opened",
		"conversation_id", conversationID,
		"replayed", len(records))
	return nil
}

// Close detaches the live subscription, if any, and clears all session
// state. Idempotent: closing an already-closed engine is a no-op. After
// Close returns, deliveries still in flight from the old subscription can no
// longer mutate the session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.detachLocked()
	e.generation++
	e.index.Reset()
	e.session = Session{}
}

// Send persists a support-authored message, making it visible in the
// session immediately and durably writing it at a pre-allocated key. The
// remote echo of the write arrives later through the live listener and is
// absorbed by the dedup index.
//
// Whitespace-only text is a silent no-op. If no conversation is open, Send
// returns ErrNoConversation. If the primary record write fails, the
// optimistic message is retracted, its id forgotten, and the error
// returned; summary-write failures are logged and swallowed because the
// message itself did persist.
func (e *Engine) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		e.mu.Lock()
		open := e.session.ConversationID != ""
		e.mu.Unlock()
		if !open {
			return ErrNoConversation
		}
		return nil
	}

	e.mu.Lock()
	if e.session.ConversationID == "" {
		e.mu.Unlock()
		return ErrNoConversation
	}
	conversationID := e.session.ConversationID
	gen := e.generation

	// Pre-allocate the key the log will store the record under. The
	// optimistic entry and its remote echo share this id, so reconciliation
	// is an identity merge.
	msg := message.Message{
		ID:         e.log.NewRecordID(),
		Text:       text,
		SenderID:   message.SupportSenderID,
		SenderName: message.SupportSenderName,
		Timestamp:  time.Now(),
	}
	e.index.Mark(msg.ID)
	e.session.Messages = insertOrdered(e.session.Messages, msg)
	e.mu.Unlock()

	rec := chatlog.Record{
		ID: msg.ID,
		Fields: map[string]any{
			"text":       msg.Text,
			"senderId":   msg.SenderID,
			"senderName": msg.SenderName,
			"timestamp":  msg.Timestamp.UTC().Format(time.RFC3339Nano),
			"isSystem":   false,
		},
	}
	if err := e.log.PutRecord(ctx, conversationID, rec); err != nil {
		e.retract(gen, msg.ID)
		return fmt.Errorf("persisting message: %w", err)
	}

	// Summary writes are best effort: the message is durable at this point,
	// so a failed summary must not retract it.
	if err := e.log.SetLastMessage(ctx, conversationID, msg.Text, msg.Timestamp); err != nil {
		e.logger.Warn("last-message summary write failed",
			"conversation_id", conversationID,
			"error", err)
	}
	if err := e.log.SetLastRead(ctx, conversationID, message.SupportSenderID, msg.Timestamp); err != nil {
		e.logger.Warn("last-read summary write failed",
			"conversation_id", conversationID,
			"error", err)
	}

	return nil
}

// consume drains one subscription's notifications into the pipeline.
// Listener errors degrade the session but leave the subscription attached;
// transient backend errors often self-resolve on the next delivery.
func (e *Engine) consume(gen uint64, conversationID string, ch <-chan chatlog.Notification) {
	for n := range ch {
		if n.Err != nil {
			e.logger.Warn("listener error",
				"conversation_id", conversationID,
				"error", n.Err)
			e.setErrorIfCurrent(gen, fmt.Sprintf("live updates degraded: %v", n.Err))
			continue
		}
		e.ingest(gen, n.Record)
	}
}

// ingest runs one record through normalize → dedup → ordered merge. The
// generation check under the lock is what makes Close effective against
// deliveries already in flight when it was called, not just future ones.
func (e *Engine) ingest(gen uint64, rec chatlog.Record) {
	msg := message.Normalize(rec.ID, rec.Fields)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	if e.index.CheckAndMark(msg.ID) {
		return
	}
	e.session.Messages = insertOrdered(e.session.Messages, msg)
}

// retract undoes a failed optimistic send: the message leaves the visible
// sequence and its id is forgotten so a later record may legitimately
// reuse it.
func (e *Engine) retract(gen uint64, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	e.index.Unmark(id)
	e.session.Messages = removeByID(e.session.Messages, id)
}

func (e *Engine) setErrorIfCurrent(gen uint64, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	e.session.Error = msg
}

// detachLocked cancels and unsubscribes the live subscription, if any.
// Must be called with mu held.
func (e *Engine) detachLocked() {
	if e.subCancel != nil {
		e.subCancel()
		e.subCancel = nil
	}
	if e.subID != "" {
		e.log.Unsubscribe(e.session.ConversationID, e.subID)
		e.subID = ""
	}
}
