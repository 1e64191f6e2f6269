package oauth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store looks up registered client records. Implementations must be safe
// for concurrent use; lookups are the only I/O this package performs.
type Store interface {
	// Lookup returns the client record for the given identifier. It
	// returns ErrClientNotFound when no record exists, or a *ServiceError
	// when the backend failed in a way that carries a structured OAuth
	// error.
	Lookup(ctx context.Context, clientID string) (*Client, error)
}

// MemoryStore is an in-memory implementation of the Store interface. It is
// typically seeded from a registry file and replaced wholesale on reload.
type MemoryStore struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory client store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*Client),
	}
}

// Lookup returns the client record for the given identifier.
func (s *MemoryStore) Lookup(_ context.Context, clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// Put adds or replaces a single client record.
func (s *MemoryStore) Put(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
}

// Replace swaps the whole registry. Concurrent lookups never observe a
// partially loaded registry.
func (s *MemoryStore) Replace(clients []*Client) {
	next := make(map[string]*Client, len(clients))
	for _, c := range clients {
		next[c.ID] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = next
}

// Count returns the number of registered clients.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// registryFile is the on-disk client registry format.
type registryFile struct {
	Clients []*Client `yaml:"clients"`
}

// LoadRegistry reads client records from a YAML registry file.
func LoadRegistry(path string) ([]*Client, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from validated configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read client registry %s: %w", path, err)
	}

	var registry registryFile
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse client registry %s: %w", path, err)
	}

	for _, c := range registry.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client registry %s contains a record without an id", path)
		}
	}

	return registry.Clients, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
