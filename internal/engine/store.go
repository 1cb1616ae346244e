package engine

import "sync/atomic"

// Store publishes the current Engine to concurrent readers. A reload builds
// a complete new Engine and swaps the pointer in one step, so in-flight
// requests keep the consistent prior index and never observe a partial
// rebuild.
type Store struct {
	p atomic.Pointer[Engine]
}

// NewStore returns a store holding the given engine.
func NewStore(e *Engine) *Store {
	s := &Store{}
	s.p.Store(e)
	return s
}

// Current returns the engine to use for this request.
func (s *Store) Current() *Engine {
	return s.p.Load()
}

// Swap atomically publishes a freshly built engine.
func (s *Store) Swap(e *Engine) {
	s.p.Store(e)
}
