package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StoredClient is a paired client as kept on disk
type StoredClient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"tokenHash"` // SHA-256 hash of token
	CreatedAt time.Time `json:"createdAt"`
}

// ClientInfo is the public view of a paired client
type ClientInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type storeFile struct {
	Clients []*StoredClient `json:"clients"`
}

// Store persists paired clients as JSON
type Store struct {
	path    string
	mu      sync.RWMutex
	clients map[string]*StoredClient // clientID -> client
	byHash  map[string]string        // tokenHash -> clientID
}

// NewStore opens the store at path. A missing file is an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		clients: make(map[string]*StoredClient),
		byHash:  make(map[string]string),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return s, nil
}

// AddClient stores a client under the hash of token
func (s *Store) AddClient(clientID, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &StoredClient{
		ID:        clientID,
		Name:      name,
		TokenHash: HashToken(token),
		CreatedAt: time.Now().UTC(),
	}
	s.clients[clientID] = c
	s.byHash[c.TokenHash] = clientID

	return s.saveLocked()
}

// RemoveClient removes a client from the store
func (s *Store) RemoveClient(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.clients[clientID]
	if !exists {
		return ErrClientNotFound
	}
	delete(s.clients, clientID)
	delete(s.byHash, c.TokenHash)

	return s.saveLocked()
}

// ValidateToken checks if a token belongs to a stored client
func (s *Store) ValidateToken(token string) bool {
	_, err := s.ClientByToken(token)
	return err == nil
}

// ClientByToken returns the client a token was issued to
func (s *Store) ClientByToken(token string) (ClientInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[HashToken(token)]
	if !ok {
		return ClientInfo{}, ErrClientNotFound
	}
	c := s.clients[id]
	return ClientInfo{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}, nil
}

// ListClients returns all clients, oldest first
func (s *Store) ListClients() []ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, ClientInfo{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.Before(clients[j].CreatedAt)
	})
	return clients
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var stored storeFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse store: %w", err)
	}

	for _, c := range stored.Clients {
		s.clients[c.ID] = c
		s.byHash[c.TokenHash] = c.ID
	}
	return nil
}

// saveLocked writes through a temp file so a crash never truncates the store.
func (s *Store) saveLocked() error {
	stored := storeFile{Clients: make([]*StoredClient, 0, len(s.clients))}
	for _, c := range s.clients {
		stored.Clients = append(stored.Clients, c)
	}
	sort.Slice(stored.Clients, func(i, j int) bool {
		return stored.Clients[i].ID < stored.Clients[j].ID
	})

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
