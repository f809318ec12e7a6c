// ABOUTME: Normalizer for schemaless remote log records
// ABOUTME: Alias tables map arbitrary backend field names onto canonical Message fields

package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alias tables for raw record fields, in priority order. Supporting an
// alternative backend field name is a table change, not a code change.
var (
	textAliases       = []string{"text", "message", "body", "content"}
	senderIDAliases   = []string{"senderId", "sender_id", "from", "authorId", "author", "uid"}
	senderNameAliases = []string{"senderName", "sender_name", "displayName", "name", "username"}
	timestampAliases  = []string{"timestamp", "createdAt", "created_at", "sentAt", "ts", "time"}
	systemAliases     = []string{"isSystem", "is_system", "system"}
)

// Normalize converts a raw log record into a canonical Message. It never
// fails: missing fields fall back to the defaults below, a record without a
// timestamp sorts as "now", and a record without an id gets a fresh one.
// Garbage in produces an empty-but-renderable message out.
func Normalize(id string, fields map[string]any) Message {
	if id == "" {
		id = uuid.New().String()
	}

	system := false
	for _, key := range systemAliases {
		if v, ok := fields[key]; ok {
			system = coerceBool(v)
			break
		}
	}

	text := firstString(fields, textAliases)

	senderID := firstString(fields, senderIDAliases)
	if senderID == "" {
		if system {
			senderID = SystemSenderID
		} else {
			senderID = UnknownSenderID
		}
	}

	senderName := firstString(fields, senderNameAliases)
	if senderName == "" && system {
		senderName = SystemSenderName
	}

	ts := time.Now()
	for _, key := range timestampAliases {
		if v, ok := fields[key]; ok {
			if parsed, ok := coerceTime(v); ok {
				ts = parsed
				break
			}
		}
	}

	return Message{
		ID:         id,
		Text:       text,
		SenderID:   senderID,
		SenderName: senderName,
		Timestamp:  ts,
		System:     system,
	}
}

// firstString returns the first non-empty string value among the aliased
// keys. Non-string values are stringified except nil, which is skipped.
func firstString(fields map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// coerceTime accepts the timestamp shapes seen from real backends:
// time.Time, RFC3339 strings, and unix second or millisecond numbers
// (JSON decoding yields float64).
func coerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	case float64:
		return unixTime(int64(t)), true
	case int64:
		return unixTime(t), true
	case int:
		return unixTime(int64(t)), true
	}
	return time.Time{}, false
}

// unixTime treats values past the year ~33658 in seconds as milliseconds.
func unixTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

// coerceBool applies loose boolean coercion: real bools, "true"/"false"
// strings, and nonzero numbers.
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	case float64:
		return b != 0
	case int:
		return b != 0
	case int64:
		return b != 0
	}
	return false
}
