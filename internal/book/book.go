// Package book implements the per-symbol order book registry: a top-of-book
// Quote published via atomic pointer swap, so readers on any goroutine see
// either the previous or the new quote, never a partial update.
package book

import (
	"sync"
	"sync/atomic"

	"marketmaker/internal/schema"
)

// Registry holds one top-of-book slot per symbol. Symbols are created
// lazily on first Update; Top on an unknown symbol reports false.
type Registry struct {
	mu   sync.RWMutex
	tops map[string]*atomic.Pointer[schema.Quote]
}

// New allocates an empty registry.
func New() *Registry {
	return &Registry{tops: make(map[string]*atomic.Pointer[schema.Quote])}
}

func (r *Registry) slot(symbol string) *atomic.Pointer[schema.Quote] {
	r.mu.RLock()
	p, ok := r.tops[symbol]
	r.mu.RUnlock()
	if ok {
		return p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.tops[symbol]; ok {
		return p
	}
	p = &atomic.Pointer[schema.Quote]{}
	r.tops[symbol] = p
	return p
}

// Update replaces the top-of-book for quote.Symbol atomically.
func (r *Registry) Update(quote schema.Quote) {
	q := quote
	r.slot(quote.Symbol).Store(&q)
}

// Top returns a consistent snapshot of the top-of-book for symbol, or false
// if no quote has been observed yet.
func (r *Registry) Top(symbol string) (schema.Quote, bool) {
	r.mu.RLock()
	p, ok := r.tops[symbol]
	r.mu.RUnlock()
	if !ok {
		return schema.Quote{}, false
	}
	q := p.Load()
	if q == nil {
		return schema.Quote{}, false
	}
	return *q, true
}

// Symbols returns the set of symbols currently tracked.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tops))
	for s := range r.tops {
		out = append(out, s)
	}
	return out
}
