// ABOUTME: Message and Participant value types for one support conversation
// ABOUTME: Defines the reserved sender identities used across the engine

package message

import "time"

// Reserved sender identities. The engine is the admin-side endpoint of a
// SoundHive support conversation, so the support identity always exists on
// the roster regardless of what the caller supplies.
const (
	SupportSenderID   = "soundhive_admin"
	SupportSenderName = "SoundHive Support"
	SystemSenderID    = "system"
	SystemSenderName  = "System"
	UnknownSenderID   = "unknown"
)

// Message is a single entry in the visible conversation sequence. Values are
// immutable once created; the engine replaces entries rather than mutating
// them, so snapshots can share backing arrays safely.
type Message struct {
	ID         string
	Text       string
	SenderID   string
	SenderName string
	Timestamp  time.Time
	System     bool
}

// Participant is one member of the conversation roster.
type Participant struct {
	ID        string
	Name      string
	AvatarURL string
	Role      string
}

// SupportParticipant returns the reserved support-side roster entry.
func SupportParticipant() Participant {
	return Participant{
		ID:   SupportSenderID,
		Name: SupportSenderName,
		Role: "support",
	}
}
