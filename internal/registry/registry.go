// Package registry tracks the optional identity label attached to each live
// connection. Anonymous connections are the normal case; a label is attached
// at most once, at upgrade time, when the client presents a known identity.
package registry

import "sync"

// Registry is a goroutine-safe map of connection ID -> identity label.
type Registry struct {
	mu     sync.RWMutex
	labels map[string]string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{labels: make(map[string]string)}
}

// Attach records an identity label for a connection. Empty labels are
// ignored so anonymous connections leave no registry state behind.
func (r *Registry) Attach(connID, label string) {
	if label == "" {
		return
	}
	r.mu.Lock()
	r.labels[connID] = label
	r.mu.Unlock()
}

// Lookup returns the identity label for a connection, if one was attached.
func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	label, ok := r.labels[connID]
	r.mu.RUnlock()
	return label, ok
}

// Forget removes all registry state for a connection. No-op if the
// connection was anonymous.
func (r *Registry) Forget(connID string) {
	r.mu.Lock()
	delete(r.labels, connID)
	r.mu.Unlock()
}

// Count returns the number of connections with an attached identity.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.labels)
	r.mu.RUnlock()
	return n
}
