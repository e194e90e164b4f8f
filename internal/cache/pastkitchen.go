// Package cache persists the past-kitchen record: the derived summary of
// the kitchen currently owning a cart. The record pre-populates conflict
// checks and UI summaries before a fresh cart fetch completes, and it is
// the only cart state that survives process death.
package cache

import (
	"encoding/json"
	"log/slog"

	"kitchencart/internal/model"
	"kitchencart/internal/storage"
)

// keyPrefix namespaces records per owner (user or anonymous session).
const keyPrefix = "past_kitchen:"

// PastKitchens reads and writes past-kitchen records through the durable
// KV collaborator.
//
// Storage failures are logged and treated as cache misses, never
// surfaced: the conflict check degrades to "no known past kitchen" and
// the add proceeds without a confirmation prompt. Availability wins over
// strict conflict prevention here, deliberately.
type PastKitchens struct {
	kv     storage.KV
	logger *slog.Logger
}

// New creates a PastKitchens cache over the given storage.
func New(kv storage.KV, logger *slog.Logger) *PastKitchens {
	return &PastKitchens{kv: kv, logger: logger}
}

// Save writes the complete record for owner, replacing any previous one.
// Writers must always pass a full record; partial patches would let
// readers observe mismatched kitchen/name/count fields.
func (p *PastKitchens) Save(owner string, rec model.PastKitchenRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		p.logger.Warn("past kitchen record marshal failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
		return
	}
	if err := p.kv.Set(keyPrefix+owner, string(data)); err != nil {
		p.logger.Warn("past kitchen record write failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
	}
}

// Load returns the record for owner, or nil on a miss. Read errors and
// corrupt records degrade to a miss.
func (p *PastKitchens) Load(owner string) *model.PastKitchenRecord {
	value, ok, err := p.kv.Get(keyPrefix + owner)
	if err != nil {
		p.logger.Warn("past kitchen record read failed, treating as miss",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}

	var rec model.PastKitchenRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		p.logger.Warn("past kitchen record corrupt, treating as miss",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
		return nil
	}
	return &rec
}

// Clear removes the record for owner. Called when the cart becomes empty.
func (p *PastKitchens) Clear(owner string) {
	if err := p.kv.Remove(keyPrefix + owner); err != nil {
		p.logger.Warn("past kitchen record clear failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
	}
}
