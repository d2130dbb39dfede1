package services

import (
	"log"
	"sync"
)

// SessionManager owns one MatchCoordinator per signed-in user. There is
// no process-wide coordinator: each session gets its own explicitly
// constructed instance, torn down when the session ends.
type SessionManager struct {
	store   MatchStore
	channel StateChannel
	opts    CoordinatorOptions

	mu       sync.Mutex
	sessions map[uint]*MatchCoordinator
	onResult func(GameResult)
}

func NewSessionManager(store MatchStore, channel StateChannel, opts CoordinatorOptions) *SessionManager {
	return &SessionManager{
		store:    store,
		channel:  channel,
		opts:     opts,
		sessions: make(map[uint]*MatchCoordinator),
	}
}

// OnResult registers a hook subscribed to every session coordinator's
// result stream. Both players' coordinators publish a result for the same
// match, so the hook must tolerate duplicates per match id.
func (m *SessionManager) OnResult(hook func(GameResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResult = hook
}

// Coordinator returns the user's session coordinator, creating one on
// first use.
func (m *SessionManager) Coordinator(userID uint) *MatchCoordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if coord, ok := m.sessions[userID]; ok {
		return coord
	}

	coord := NewMatchCoordinator(m.store, m.channel, m.opts)
	if m.onResult != nil {
		coord.SubscribeToResult(m.onResult)
	}
	m.sessions[userID] = coord
	log.Printf("Created match session for user %d", userID)
	return coord
}

// EndSession cleans up and discards the user's coordinator, if any.
func (m *SessionManager) EndSession(userID uint) {
	m.mu.Lock()
	coord, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		coord.Cleanup()
		log.Printf("Ended match session for user %d", userID)
	}
}
