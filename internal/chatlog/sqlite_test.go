// ABOUTME: Tests for the SQLite-backed conversation log
// ABOUTME: Verifies round trips, bounded recency reads, upserts, and live fan-out

package chatlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	l, err := NewSQLiteLog(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLog_PutAndListRoundTrip(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()

	rec := Record{ID: "m1", Fields: map[string]any{
		"text":      "hi",
		"senderId":  "u1",
		"timestamp": "2024-01-01T10:00:00Z",
		"isSystem":  false,
		"attempts":  float64(3),
	}}
	require.NoError(t, l.PutRecord(ctx, "conv1", rec))

	records, err := l.ListRecent(ctx, "conv1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "hi", got.Fields["text"])
	assert.Equal(t, "u1", got.Fields["senderId"])
	assert.Equal(t, false, got.Fields["isSystem"])
	assert.Equal(t, float64(3), got.Fields["attempts"])
}

func TestSQLiteLog_ListRecentIsBoundedToNewest(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec := Record{ID: fmt.Sprintf("m%02d", i), Fields: map[string]any{"n": float64(i)}}
		require.NoError(t, l.PutRecord(ctx, "conv1", rec))
	}

	records, err := l.ListRecent(ctx, "conv1", 4)
	require.NoError(t, err)
	require.Len(t, records, 4)
	// The newest four, in write order
	assert.Equal(t, "m06", records[0].ID)
	assert.Equal(t, "m09", records[3].ID)
}

func TestSQLiteLog_PutExistingKeyReplaces(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.PutRecord(ctx, "conv1", Record{ID: "m1", Fields: map[string]any{"text": "draft"}}))
	require.NoError(t, l.PutRecord(ctx, "conv1", Record{ID: "m1", Fields: map[string]any{"text": "final"}}))

	records, err := l.ListRecent(ctx, "conv1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "final", records[0].Fields["text"])
}

func TestSQLiteLog_PutRequiresID(t *testing.T) {
	l := createTestLog(t)

	err := l.PutRecord(context.Background(), "conv1", Record{Fields: map[string]any{"text": "x"}})
	require.Error(t, err)
}

func TestSQLiteLog_ConversationsAreIsolated(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.PutRecord(ctx, "conv1", Record{ID: "a", Fields: map[string]any{}}))
	require.NoError(t, l.PutRecord(ctx, "conv2", Record{ID: "b", Fields: map[string]any{}}))

	records, err := l.ListRecent(ctx, "conv1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}

func TestSQLiteLog_SubscribeReceivesCommittedWrites(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()

	ch, subID, err := l.Subscribe(ctx, "conv1")
	require.NoError(t, err)
	defer l.Unsubscribe("conv1", subID)

	require.NoError(t, l.PutRecord(ctx, "conv1", Record{ID: "m1", Fields: map[string]any{"text": "live"}}))

	select {
	case n := <-ch:
		require.NoError(t, n.Err)
		assert.Equal(t, "m1", n.Record.ID)
		assert.Equal(t, "live", n.Record.Fields["text"])
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestSQLiteLog_SummariesUpsert(t *testing.T) {
	l := createTestLog(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.SetLastMessage(ctx, "conv1", "first", at))
	require.NoError(t, l.SetLastMessage(ctx, "conv1", "second", at.Add(time.Minute)))
	require.NoError(t, l.SetLastRead(ctx, "conv1", "soundhive_admin", at))

	var value string
	err := l.db.QueryRow(
		`SELECT value FROM summaries WHERE conversation_id = ? AND key = ?`,
		"conv1", "last_message",
	).Scan(&value)
	require.NoError(t, err)
	assert.Equal(t, "second", value)

	err = l.db.QueryRow(
		`SELECT value FROM summaries WHERE conversation_id = ? AND key = ?`,
		"conv1", "last_read:soundhive_admin",
	).Scan(&value)
	require.NoError(t, err)
	assert.Equal(t, at.Format(time.RFC3339Nano), value)

	var count int
	err = l.db.QueryRow(`SELECT COUNT(*) FROM summaries WHERE conversation_id = ?`, "conv1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteLog_NewRecordIDUnique(t *testing.T) {
	l := createTestLog(t)
	assert.NotEqual(t, l.NewRecordID(), l.NewRecordID())
}
