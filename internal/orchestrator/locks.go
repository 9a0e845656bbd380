package orchestrator

import "sync"

// conversationLocks serializes processing per conversation. Entries are
// reference counted so the map does not grow with every conversation
// ever seen.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: map[string]*lockEntry{}}
}

// Lock blocks until the conversation is free and returns the unlock func.
func (l *conversationLocks) Lock(conversationID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &lockEntry{}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}
