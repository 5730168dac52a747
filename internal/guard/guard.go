// ABOUTME: In-process in-flight guard for deduplicating concurrent operations.
// ABOUTME: Used by the session gateway adapter to collapse racing start calls per tenant.

package guard

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// InFlight tracks keys with an operation currently in progress. Acquire/release
// is atomic per key, so two goroutines racing to start the same tenant's
// session see exactly one winner. The set is not durable: losing it on process
// restart is safe because it only dedupes concurrent calls.
type InFlight struct {
	keys cmap.ConcurrentMap[string, struct{}]
}

// New creates an empty in-flight guard.
func New() *InFlight {
	return &InFlight{keys: cmap.New[struct{}]()}
}

// TryAcquire marks the key as in flight. Returns true if the caller won the
// slot, false if another operation already holds it.
func (g *InFlight) TryAcquire(key string) bool {
	return g.keys.SetIfAbsent(key, struct{}{})
}

// Release frees the key. Safe to call for keys that were never acquired.
func (g *InFlight) Release(key string) {
	g.keys.Remove(key)
}

// Held reports whether the key is currently in flight.
func (g *InFlight) Held(key string) bool {
	return g.keys.Has(key)
}

// Len returns the number of keys currently in flight.
func (g *InFlight) Len() int {
	return g.keys.Count()
}
