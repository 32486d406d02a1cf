package store

import (
	"path/filepath"
	"sync"

	"silent/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore persists X3DH handshake records to disk.
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir}
}

func (s *SessionFileStore) load() (map[domain.Username]domain.Session, error) {
	sessions := map[domain.Username]domain.Session{}
	if err := readJSON(filepath.Join(s.dir, sessionsFilename), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveSession writes a session record for peer.
func (s *SessionFileStore) SaveSession(peer domain.Username, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	sessions[peer] = session
	return writeJSON(filepath.Join(s.dir, sessionsFilename), sessions, 0o600)
}

// LoadSession retrieves a stored session for peer.
func (s *SessionFileStore) LoadSession(peer domain.Username) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return domain.Session{}, false, err
	}
	session, ok := sessions[peer]
	return session, ok, nil
}

// DeleteSession removes the record for peer, if any.
func (s *SessionFileStore) DeleteSession(peer domain.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[peer]; !ok {
		return nil
	}
	delete(sessions, peer)
	return writeJSON(filepath.Join(s.dir, sessionsFilename), sessions, 0o600)
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
