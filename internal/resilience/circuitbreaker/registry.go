package circuitbreaker

import (
	"log/slog"
	"sort"
	"sync"
)

// StateChangeFunc is invoked whenever any breaker in the registry changes
// state. Callbacks run after the transition completes, outside the
// breaker's lock, so they may block without stalling the breaker.
type StateChangeFunc func(name string, from, to State)

// Registry is the process-wide map from resource name to circuit breaker.
// Breakers are created lazily on first reference and persist for the process
// lifetime; there is no removal operation.
type Registry struct {
	mu            sync.RWMutex
	breakers      map[string]*CircuitBreaker
	onStateChange StateChangeFunc
	logger        *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   slog.Default(),
	}
}

// SetOnStateChange installs a callback fired on every state transition of
// every breaker, including breakers created after the call. Intended for
// metrics gauges and breaker-open alerting.
func (r *Registry) SetOnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onStateChange = fn
	for _, cb := range r.breakers {
		cb.mu.Lock()
		cb.onStateChange = fn
		cb.mu.Unlock()
	}
}

// GetOrCreate returns the breaker for name, creating it on first reference.
// The first caller's config wins; a nil config means DefaultConfig(name).
func (r *Registry) GetOrCreate(name string, cfg *Config) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another caller may have raced us here.
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	var c Config
	if cfg != nil {
		c = *cfg
		c.Name = name
	} else {
		c = DefaultConfig(name)
	}

	cb = New(c)
	cb.mu.Lock()
	cb.onStateChange = r.onStateChange
	cb.mu.Unlock()

	r.breakers[name] = cb
	r.logger.Info("circuit breaker created", slog.String("circuit", name))
	return cb
}

// Get returns the breaker for name, or nil if it was never referenced.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// AllStats returns a snapshot of every breaker's statistics keyed by name.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// Unhealthy returns the sorted names of breakers whose state is not Closed.
func (r *Registry) Unhealthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, cb := range r.breakers {
		if cb.State() != StateClosed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResetAll resets every breaker to Closed. Lifetime totals are preserved.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
	r.logger.Info("all circuit breakers reset", slog.Int("count", len(r.breakers)))
}
