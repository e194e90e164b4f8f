package engine

import (
	"log/slog"
	"sync"

	"kitchencart/internal/backend"
	"kitchencart/internal/cache"
)

// Manager hands out one engine per cart owner. Engines are created
// lazily and live for the process lifetime; per-owner cart state is
// small and the authoritative copy is server-side anyway.
type Manager struct {
	client backend.Client
	cache  *cache.PastKitchens
	logger *slog.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates a manager sharing one backend client and cache.
func NewManager(client backend.Client, kitchens *cache.PastKitchens, logger *slog.Logger) *Manager {
	return &Manager{
		client:  client,
		cache:   kitchens,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the engine for an owner, creating it on first use.
// Owners are keyed by user id when authenticated, session id otherwise,
// so a user sees one cart across devices.
func (m *Manager) Engine(owner backend.Owner) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner.Key()
	if e, ok := m.engines[key]; ok {
		return e
	}
	e := New(owner, m.client, m.cache, m.logger)
	m.engines[key] = e
	return e
}
