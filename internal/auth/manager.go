// Package auth pairs bridge clients with the daemon and checks their tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("auth")

const (
	tokenBytes      = 32 // 256-bit tokens
	maxAuthFailures = 5
	lockoutDuration = 60 * time.Second
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockedOut      = errors.New("too many failed attempts")
)

// Pairing is the outcome of a successful pair request. The token is only
// ever returned here; the store keeps its hash. Tokens work immediately;
// the user removes unwanted clients with -revoke-client.
type Pairing struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// Manager handles client authentication
type Manager struct {
	store    *Store
	testMode bool
	notify   func(clientName string) error
	now      func() time.Time

	mu           sync.Mutex
	authFailures map[string]int       // remote -> failure count
	lockouts     map[string]time.Time // remote -> lockout end time
}

// NewManager creates a new auth manager. In test mode pairing skips the
// desktop notification.
func NewManager(store *Store, testMode bool) *Manager {
	return &Manager{
		store:        store,
		testMode:     testMode,
		notify:       ShowPairingNotification,
		now:          time.Now,
		authFailures: make(map[string]int),
		lockouts:     make(map[string]time.Time),
	}
}

// Pair registers a new client and returns its token
func (m *Manager) Pair(clientName string) (*Pairing, error) {
	if clientName == "" {
		clientName = "unnamed client"
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	clientID := uuid.NewString()

	if !m.testMode {
		// Notification failures are not fatal, the user can still revoke.
		if err := m.notify(clientName); err != nil {
			log.Warningf("Failed to show pairing notification: %v", err)
		}
	}

	if err := m.store.AddClient(clientID, clientName, token); err != nil {
		return nil, fmt.Errorf("failed to store client: %w", err)
	}

	log.Infof("Paired client %q as %s", clientName, clientID)
	return &Pairing{Token: token, ClientID: clientID}, nil
}

// ValidateToken checks if a token is valid
func (m *Manager) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	return m.store.ValidateToken(token)
}

// Authenticate validates token on behalf of remote, applying the failure
// lockout.
func (m *Manager) Authenticate(token, remote string) error {
	if m.IsLockedOut(remote) {
		return ErrLockedOut
	}
	if !m.ValidateToken(token) {
		m.RecordAuthFailure(remote)
		log.Warningf("Rejected token from %s", remote)
		return ErrUnauthorized
	}
	m.clearFailures(remote)
	return nil
}

// RecordAuthFailure records an authentication failure
func (m *Manager) RecordAuthFailure(remote string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authFailures[remote]++
	if m.authFailures[remote] >= maxAuthFailures {
		m.lockouts[remote] = m.now().Add(lockoutDuration)
		m.authFailures[remote] = 0
		log.Warningf("Locked out %s for %s", remote, lockoutDuration)
	}
}

// IsLockedOut checks if a remote is locked out
func (m *Manager) IsLockedOut(remote string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	end, exists := m.lockouts[remote]
	if !exists {
		return false
	}
	if m.now().After(end) {
		delete(m.lockouts, remote)
		return false
	}
	return true
}

func (m *Manager) clearFailures(remote string) {
	m.mu.Lock()
	delete(m.authFailures, remote)
	m.mu.Unlock()
}

// RevokeClient revokes a client's access
func (m *Manager) RevokeClient(clientID string) error {
	return m.store.RemoveClient(clientID)
}

// ListClients returns all registered clients
func (m *Manager) ListClients() []ClientInfo {
	return m.store.ListClients()
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken creates a SHA-256 hash of a token for storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
