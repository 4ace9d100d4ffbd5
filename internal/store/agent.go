package store

import (
	"sync"
	"time"
)

// AgentStore tracks the identities the registrar has recognized as
// agents eligible to create instances through the factory.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]time.Time // agent id → registration time
}

// NewAgentStore creates an empty AgentStore.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents: make(map[string]time.Time),
	}
}

// Register records an agent identity. Registering an already known
// agent is a no-op; the original registration time is kept.
func (s *AgentStore) Register(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		s.agents[id] = time.Now()
	}
}

// IsRegistered reports whether the identity is a recognized agent.
func (s *AgentStore) IsRegistered(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.agents[id]
	return ok
}
