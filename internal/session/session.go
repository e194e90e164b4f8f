// Package session produces and persists the stable anonymous identifier
// that keys server-side carts for users without an account.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"kitchencart/internal/storage"
)

// sessionKey is the storage key for the persisted identifier.
const sessionKey = "session_id"

// Identity manages the anonymous session id. The id is generated once per
// installation (UUIDv4), persisted indefinitely, and only regenerated on
// an explicit Reset (logout / account linking).
//
// Storage failures never block cart usage: the identity degrades to a
// process-lifetime id and logs the degradation.
type Identity struct {
	kv     storage.KV
	logger *slog.Logger

	mu       sync.Mutex
	memoryID string // fallback id when persistence is unavailable
}

// New creates an Identity over the given storage collaborator.
func New(kv storage.KV, logger *slog.Logger) *Identity {
	return &Identity{kv: kv, logger: logger}
}

// SessionID returns the persisted session id, generating and persisting a
// fresh UUIDv4 on first use.
func (i *Identity) SessionID() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	value, ok, err := i.kv.Get(sessionKey)
	if err != nil {
		i.logger.Warn("session storage read failed, using process-lifetime id",
			slog.String("error", err.Error()))
		return i.memoryFallback()
	}
	if ok && value != "" {
		return value
	}

	id := uuid.NewString()
	if err := i.kv.Set(sessionKey, id); err != nil {
		i.logger.Warn("session storage write failed, using process-lifetime id",
			slog.String("error", err.Error()))
		i.memoryID = id
		return id
	}
	return id
}

// Reset discards the current id and persists a fresh one. Used when an
// anonymous cart transitions to an account.
func (i *Identity) Reset() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := uuid.NewString()
	i.memoryID = id
	if err := i.kv.Set(sessionKey, id); err != nil {
		i.logger.Warn("session storage write failed during reset",
			slog.String("error", err.Error()))
	}
	return id
}

// memoryFallback returns the process-lifetime id, minting one if needed.
// Caller must hold i.mu.
func (i *Identity) memoryFallback() string {
	if i.memoryID == "" {
		i.memoryID = uuid.NewString()
	}
	return i.memoryID
}
