// ABOUTME: Session state and the ordered merge of the visible message sequence
// ABOUTME: Stable timestamp-ordered insert producing a new slice value per merge

package engine

import (
	"sort"

	"github.com/soundhive/chatsync/internal/message"
)

// Session is the externally observable state of one open conversation.
// Snapshot returns it by value; Messages and Participants are fresh slice
// values after every mutation and their entries are never mutated in place,
// so callers may hold a snapshot indefinitely and compare Messages slices
// for cheap change detection.
type Session struct {
	ConversationID string
	Loading        bool
	Error          string
	Messages       []message.Message
	Participants   []message.Participant
}

// insertOrdered merges msg into msgs and returns a new slice.
//
// An existing entry with the same id is replaced in place, keeping its
// position, so an already-rendered message never jumps when its remote echo
// carries authoritative fields. Otherwise msg is inserted at the last
// position that keeps the sequence non-decreasing by timestamp, which keeps
// equal-timestamp entries stable in arrival order.
func insertOrdered(msgs []message.Message, msg message.Message) []message.Message {
	for i, existing := range msgs {
		if existing.ID == msg.ID {
			out := make([]message.Message, len(msgs))
			copy(out, msgs)
			out[i] = msg
			return out
		}
	}

	at := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].Timestamp.After(msg.Timestamp)
	})

	out := make([]message.Message, 0, len(msgs)+1)
	out = append(out, msgs[:at]...)
	out = append(out, msg)
	out = append(out, msgs[at:]...)
	return out
}

// removeByID returns a new slice without the entry for id. Used only to
// retract a failed optimistic send.
func removeByID(msgs []message.Message, id string) []message.Message {
	out := make([]message.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
