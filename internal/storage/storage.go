// Package storage provides the durable key-value collaborator backing
// session identity and the past-kitchen cache.
package storage

// KV is the storage contract consumed by the cart subsystem.
// Get reports presence explicitly so callers can distinguish a missing
// key from an empty value. Implementations must be safe for concurrent
// use.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}
