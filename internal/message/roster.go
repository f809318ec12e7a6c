// ABOUTME: Conversation roster construction
// ABOUTME: Merges caller-supplied participants with the reserved support identity

package message

import "github.com/samber/lo"

// BuildRoster merges the caller-supplied participants with the reserved
// support participant. Entries are deduplicated by id with last-write-wins
// on conflicting fields; first-appearance order is preserved. The support
// participant is always on the resulting roster.
func BuildRoster(callers []Participant) []Participant {
	merged := make(map[string]Participant, len(callers)+1)
	var order []string

	add := func(p Participant) {
		if p.ID == "" {
			return
		}
		if _, ok := merged[p.ID]; !ok {
			order = append(order, p.ID)
		}
		merged[p.ID] = p
	}

	for _, p := range callers {
		add(p)
	}
	add(SupportParticipant())

	return lo.Map(order, func(id string, _ int) Participant {
		return merged[id]
	})
}
