// ABOUTME: SQLite implementation of ConversationLog using modernc.org/sqlite
// ABOUTME: Records are JSON payloads keyed by (conversation_id, record_id) with commit-order fan-out

package chatlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteLog implements ConversationLog on a local SQLite database. It is the
// durable backend for single-host deployments; record-added notifications
// are fanned out in-process after each committed write.
type SQLiteLog struct {
	db          *sql.DB
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewSQLiteLog opens (or creates) the log database at path. The schema is
// created automatically, and parent directories are created if needed.
// Pass ":memory:" for an ephemeral database.
func NewSQLiteLog(path string, logger *slog.Logger) (*SQLiteLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chatlog")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLog{
		db:          db,
		broadcaster: NewBroadcaster(logger),
		logger:      logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("conversation log opened", "path", path)
	return l, nil
}

// createSchema creates the log tables if they don't exist
func (l *SQLiteLog) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			conversation_id TEXT NOT NULL,
			record_id       TEXT NOT NULL,
			fields          TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			PRIMARY KEY (conversation_id, record_id)
		);

		CREATE INDEX IF NOT EXISTS idx_records_conversation_created
			ON records(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS summaries (
			conversation_id TEXT NOT NULL,
			key             TEXT NOT NULL,
			value           TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			PRIMARY KEY (conversation_id, key)
		);
	`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// NewRecordID allocates a unique record key.
func (l *SQLiteLog) NewRecordID() string {
	return uuid.New().String()
}

// ListRecent returns up to limit of the most recently written records for
// the conversation. A DESC subquery picks the newest rows, re-ordered ASC so
// callers receive them in write order.
func (l *SQLiteLog) ListRecent(ctx context.Context, conversationID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT record_id, fields FROM (
			SELECT record_id, fields, created_at, rowid
			FROM records
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := l.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}

		var fields map[string]any
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", id, err)
		}

		records = append(records, Record{ID: id, Fields: fields})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}

	return records, nil
}

// Subscribe registers for record-added notifications on the conversation.
func (l *SQLiteLog) Subscribe(ctx context.Context, conversationID string) (<-chan Notification, string, error) {
	ch, subID := l.broadcaster.Subscribe(ctx, conversationID)
	return ch, subID, nil
}

// Unsubscribe detaches a live subscription.
func (l *SQLiteLog) Unsubscribe(conversationID, subID string) {
	l.broadcaster.Unsubscribe(conversationID, subID)
}

// PutRecord stores rec at its client-chosen key and notifies subscribers
// once the write has committed. Writing an existing key replaces the record.
func (l *SQLiteLog) PutRecord(ctx context.Context, conversationID string, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id required")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encoding record fields: %w", err)
	}

	query := `
		INSERT INTO records (conversation_id, record_id, fields, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, record_id) DO UPDATE SET fields = excluded.fields
	`
	_, err = l.db.ExecContext(ctx, query,
		conversationID,
		rec.ID,
		string(fieldsJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}

	l.logger.Debug("record stored",
		"conversation_id", conversationID,
		"record_id", rec.ID)

	l.broadcaster.Publish(conversationID, Notification{Record: rec})
	return nil
}

// SetLastMessage updates the conversation's last-message summary.
func (l *SQLiteLog) SetLastMessage(ctx context.Context, conversationID, text string, at time.Time) error {
	return l.setSummary(ctx, conversationID, "last_message", text, at)
}

// SetLastRead updates the last-read timestamp for one sender.
func (l *SQLiteLog) SetLastRead(ctx context.Context, conversationID, senderID string, at time.Time) error {
	return l.setSummary(ctx, conversationID, "last_read:"+senderID, at.UTC().Format(time.RFC3339Nano), at)
}

func (l *SQLiteLog) setSummary(ctx context.Context, conversationID, key, value string, at time.Time) error {
	query := `
		INSERT INTO summaries (conversation_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := l.db.ExecContext(ctx, query,
		conversationID,
		key,
		value,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing summary %s: %w", key, err)
	}
	return nil
}

// Close shuts down the broadcaster and closes the database.
func (l *SQLiteLog) Close() error {
	l.broadcaster.Close()
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
