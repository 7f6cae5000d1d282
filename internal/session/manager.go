package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Manager owns every live session and its workspace.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	storage  *storage.LocalStorage
	now      func() time.Time
}

func NewManager(ls *storage.LocalStorage) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		storage:  ls,
		now:      time.Now,
	}
}

// Create starts a session with a fresh workspace.
func (m *Manager) Create(name string) (*Session, error) {
	id := uuid.New().String()
	dir, err := m.storage.CreateWorkspace(id)
	if err != nil {
		return nil, err
	}
	s := newSession(id, name, dir, m.now())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Printf("Session %s created (name: %s)", id, name)
	return s, nil
}

// Get looks a session up and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &types.NotFoundError{Kind: "session", ID: id}
	}
	s.touch(m.now())
	return s, nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sortByCreated(out)
	return out
}

// Remove forgets a session and deletes its workspace.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return &types.NotFoundError{Kind: "session", ID: id}
	}
	if err := m.storage.RemoveWorkspace(id); err != nil {
		return err
	}
	log.Printf("Session %s removed", id)
	return nil
}

// Expired lists sessions idle for longer than maxAge.
func (m *Manager) Expired(maxAge time.Duration) []string {
	cutoff := m.now().Add(-maxAge)
	var ids []string
	for _, s := range m.List() {
		if s.LastActive().Before(cutoff) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
