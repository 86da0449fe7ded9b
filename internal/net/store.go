package net

// SessionStore tracks live observer sessions. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) { st.sessions[s.ID] = s }

func (st *SessionStore) Remove(id uint64) {
	delete(st.sessions, id)
}

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Count() int { return len(st.sessions) }

// ForEach visits every session that is still open.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.sessions {
		if !s.IsClosed() {
			fn(s)
		}
	}
}

// CloseAll closes and forgets every session.
func (st *SessionStore) CloseAll() {
	for id, s := range st.sessions {
		s.Close()
		delete(st.sessions, id)
	}
}
