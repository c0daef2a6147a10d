package chatclient

import "sync"

// Store is the ordered message list of the active conversation. Display
// order is insertion order: optimistic entries are appended at send time
// and reconciled in place.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	seen     map[string]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// LoadHistory replaces the store contents with history and marks every
// loaded identity as seen. Duplicate identities in history are dropped.
func (s *Store) LoadHistory(history []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(history)
}

func (s *Store) loadLocked(history []Message) {
	s.messages = make([]Message, 0, len(history))
	s.seen = make(map[string]struct{}, len(history))
	for _, m := range history {
		if m.ID == "" {
			continue
		}
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		m.State = StateConfirmed
		s.seen[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
}

// AddIncoming stores a server-confirmed message. An identity already seen
// is not stored again, but an unconfirmed entry it echoes is removed. A
// matching unconfirmed entry is replaced in place, otherwise the message is
// appended. It reports whether the store changed.
func (s *Store) AddIncoming(m Message) bool {
	if m.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[m.ID]; ok {
		return s.dropEchoed(m.CorrelationID)
	}
	s.seen[m.ID] = struct{}{}
	m.State = StateConfirmed

	if i := s.reconcileIndex(m); i >= 0 {
		s.messages[i] = m
		return true
	}
	s.messages = append(s.messages, m)
	return true
}

// reconcileIndex finds the optimistic entry m confirms. The correlation
// identity is authoritative; matching on (sender, body) is only tried for
// records that carry no correlation identity at all. Caller holds s.mu.
func (s *Store) reconcileIndex(m Message) int {
	if m.CorrelationID != "" {
		for i := range s.messages {
			e := &s.messages[i]
			if e.ID == m.CorrelationID && e.State != StateConfirmed {
				return i
			}
		}
		return -1
	}
	for i := range s.messages {
		e := &s.messages[i]
		if e.State == StatePending && e.SenderID == m.SenderID && e.Body == m.Body {
			return i
		}
	}
	return -1
}

// dropEchoed removes the unconfirmed entry whose placeholder id is
// correlation. Caller holds s.mu.
func (s *Store) dropEchoed(correlation string) bool {
	if correlation == "" {
		return false
	}
	for i := range s.messages {
		if s.messages[i].ID == correlation && s.messages[i].State != StateConfirmed {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// MergeHistory loads history and keeps the entries added while it was in
// flight: confirmed records history does not hold, and unconfirmed entries
// no history record echoes. It returns the placeholder ids history
// confirmed so their pending timers can be stopped.
func (s *Store) MergeHistory(history []Message) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.messages
	s.loadLocked(history)

	echoed := make(map[string]struct{})
	for _, m := range s.messages {
		if m.CorrelationID != "" {
			echoed[m.CorrelationID] = struct{}{}
		}
	}

	var confirmed []string
	for _, m := range live {
		if m.State == StateConfirmed {
			if _, ok := s.seen[m.ID]; ok {
				continue
			}
			s.seen[m.ID] = struct{}{}
			s.messages = append(s.messages, m)
			continue
		}
		if _, ok := echoed[m.ID]; ok {
			confirmed = append(confirmed, m.ID)
			continue
		}
		s.messages = append(s.messages, m)
	}
	return confirmed
}

// AddOptimistic appends m as a pending entry. Entries are never
// deduplicated against each other: every send attempt is distinct.
func (s *Store) AddOptimistic(m Message) Message {
	if m.ID == "" {
		m.ID = NewPlaceholderID()
	}
	if m.CorrelationID == "" {
		m.CorrelationID = m.ID
	}
	m.State = StatePending

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return m
}

// MarkFailed moves the pending entry with placeholder id to failed. It
// reports whether an entry changed.
func (s *Store) MarkFailed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id && s.messages[i].State == StatePending {
			s.messages[i].State = StateFailed
			return true
		}
	}
	return false
}

// Remove deletes the entry with id and returns it.
func (s *Store) Remove(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			m := s.messages[i]
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return m, true
		}
	}
	return Message{}, false
}

// Get returns the entry with id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Seen reports whether a server identity has already been stored.
func (s *Store) Seen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

// Messages returns a copy of the entries in display order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset clears all entries and the seen set.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
}
