package session

import "sync"

// conversation is one sender's history plus its mutation lock.
type conversation struct {
	mu      sync.Mutex
	entries []Entry
}

// MemoryStore keeps all histories in process memory. Everything is lost on
// restart; the sqlite backend exists for deployments that care.
//
// The top-level mutex only guards the sender map. Each conversation carries
// its own lock, so concurrent requests for different senders never contend.
type MemoryStore struct {
	maxPairs int

	mu      sync.Mutex
	senders map[string]*conversation
}

// NewMemoryStore returns an empty store retaining maxPairs round trips per
// sender.
func NewMemoryStore(maxPairs int) *MemoryStore {
	return &MemoryStore{
		maxPairs: maxPairs,
		senders:  make(map[string]*conversation),
	}
}

// conv returns the sender's conversation, creating it lazily.
func (s *MemoryStore) conv(sender string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.senders[sender]
	if !ok {
		c = &conversation{}
		s.senders[sender] = c
	}
	return c
}

func (s *MemoryStore) History(sender string) []Entry {
	c := s.conv(sender)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (s *MemoryStore) AppendUser(sender, text string) {
	s.append(sender, Entry{Role: RoleUser, Content: text})
}

func (s *MemoryStore) AppendAssistant(sender, text string) {
	s.append(sender, Entry{Role: RoleAssistant, Content: text})
}

func (s *MemoryStore) append(sender string, e Entry) {
	c := s.conv(sender)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (s *MemoryStore) Truncate(sender string) {
	c := s.conv(sender)
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit := 2 * s.maxPairs; len(c.entries) > limit {
		// FIFO eviction, purely positional.
		c.entries = append(c.entries[:0:0], c.entries[len(c.entries)-limit:]...)
	}
}

func (s *MemoryStore) RollbackLastUser(sender string) {
	c := s.conv(sender)
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.entries); n > 0 && c.entries[n-1].Role == RoleUser {
		c.entries = c.entries[:n-1]
	}
}
