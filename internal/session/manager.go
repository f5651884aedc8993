package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// Factory builds a session for a guild. The manager owns the lifecycle of
// whatever it returns.
type Factory func(guildID string) *Session

// Manager keeps at most one live session per guild. Opening a guild that
// already has a session tears the old one down first, so two sockets never
// race against the same guild.
type Manager struct {
	factory Factory
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(factory Factory, log zerolog.Logger) *Manager {
	return &Manager{
		factory:  factory,
		log:      log.With().Str("component", "manager").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Open starts a fresh session for the guild, stopping any prior one.
func (m *Manager) Open(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[guildID]; ok {
		m.log.Info().Str("guild", guildID).Msg("replacing existing session")
		prev.Stop()
	}

	s := m.factory(guildID)
	m.sessions[guildID] = s
	s.Start()
	return s
}

// Get returns the live session for a guild, if any.
func (m *Manager) Get(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[guildID]
	return s, ok
}

// Close stops and forgets the guild's session.
func (m *Manager) Close(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[guildID]; ok {
		s.Stop()
		delete(m.sessions, guildID)
	}
}

// CloseAll stops every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Stop()
		delete(m.sessions, id)
	}
}
