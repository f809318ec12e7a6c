// ABOUTME: Seen-id index for one open conversation subscription
// ABOUTME: Suppresses re-delivery of records already materialized in the visible sequence

package dedupe

import "sync"

// Index tracks which record ids have already been materialized in the
// visible message sequence. It is owned by a single engine instance and
// reset wholesale on every open, so ids are scoped to one subscription
// lifetime and never leak across conversations.
type Index struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty index.
func New() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// CheckAndMark atomically checks whether id has been seen and marks it if
// not. Returns true if the id was already seen (duplicate).
func (i *Index) CheckAndMark(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.seen[id]; ok {
		return true
	}
	i.seen[id] = struct{}{}
	return false
}

// Seen reports whether id has been marked.
func (i *Index) Seen(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.seen[id]
	return ok
}

// Mark records that id has been seen.
func (i *Index) Mark(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[id] = struct{}{}
}

// Unmark forgets id. Used when an optimistic send fails and its record will
// never reach the log, so a later record may legitimately reuse the id.
func (i *Index) Unmark(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, id)
}

// Reset clears the index. Called exactly once per conversation open.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen = make(map[string]struct{})
}
