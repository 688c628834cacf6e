// Package memory implements storage.Backend on a process-local map.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/petshop-storefront/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

// Backend keeps every namespace in one map guarded by a RWMutex.
type Backend struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{data: make(map[string]map[string]string)}
}

// Namespace returns the KV view for sessionID.
func (b *Backend) Namespace(sessionID string) storage.KV {
	return &namespace{b: b, id: sessionID}
}

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error { return nil }

// Close drops all data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]map[string]string)
	return nil
}

// Sessions returns the number of namespaces holding at least one key.
func (b *Backend) Sessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

type namespace struct {
	b  *Backend
	id string
}

func (n *namespace) Get(_ context.Context, key string) (string, error) {
	n.b.mu.RLock()
	defer n.b.mu.RUnlock()

	v, ok := n.b.data[n.id][key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (n *namespace) Set(_ context.Context, key, value string) error {
	n.b.mu.Lock()
	defer n.b.mu.Unlock()

	m, ok := n.b.data[n.id]
	if !ok {
		m = make(map[string]string)
		n.b.data[n.id] = m
	}
	m[key] = value
	return nil
}

func (n *namespace) Delete(_ context.Context, key string) error {
	n.b.mu.Lock()
	defer n.b.mu.Unlock()

	m, ok := n.b.data[n.id]
	if !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		delete(n.b.data, n.id)
	}
	return nil
}
