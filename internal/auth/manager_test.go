package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T, testMode bool) *Manager {
	t.Helper()
	m := NewManager(newTestStore(t), testMode)
	m.notify = func(string) error { return nil }
	return m
}

func TestPair(t *testing.T) {
	manager := newTestManager(t, true)

	p, err := manager.Pair("Test Client")
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	if len(p.Token) != 64 { // 32 bytes = 64 hex chars
		t.Errorf("Expected token length 64, got %d", len(p.Token))
	}
	if _, err := uuid.Parse(p.ClientID); err != nil {
		t.Errorf("Client ID is not a UUID: %v", err)
	}
}

func TestPairNotifies(t *testing.T) {
	manager := newTestManager(t, false)

	var notified string
	manager.notify = func(name string) error {
		notified = name
		return errors.New("no notification daemon")
	}

	p, err := manager.Pair("Phone")
	if err != nil {
		t.Fatalf("Pair should survive notification failure: %v", err)
	}
	if notified != "Phone" {
		t.Errorf("Expected notification for Phone, got %q", notified)
	}
	if !manager.ValidateToken(p.Token) {
		t.Error("Paired token should validate")
	}
}

func TestValidateToken(t *testing.T) {
	manager := newTestManager(t, true)

	p, err := manager.Pair("Test Client")
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	if !manager.ValidateToken(p.Token) {
		t.Error("Expected token to be valid")
	}
	if manager.ValidateToken("invalid-token") {
		t.Error("Expected invalid token to fail validation")
	}
	if manager.ValidateToken("") {
		t.Error("Expected empty token to fail validation")
	}

	if err := manager.RevokeClient(p.ClientID); err != nil {
		t.Fatalf("RevokeClient failed: %v", err)
	}
	if manager.ValidateToken(p.Token) {
		t.Error("Revoked token should fail validation")
	}
}

func TestAuthenticateLockout(t *testing.T) {
	manager := newTestManager(t, true)
	now := time.Now()
	manager.now = func() time.Time { return now }

	p, err := manager.Pair("Test Client")
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	const remote = "192.168.1.1"
	for i := 0; i < maxAuthFailures; i++ {
		if err := manager.Authenticate("wrong", remote); err != ErrUnauthorized {
			t.Fatalf("Attempt %d: expected ErrUnauthorized, got %v", i+1, err)
		}
	}

	// Even a good token is refused while locked out.
	if err := manager.Authenticate(p.Token, remote); err != ErrLockedOut {
		t.Errorf("Expected ErrLockedOut, got %v", err)
	}
	if err := manager.Authenticate(p.Token, "10.0.0.1"); err != nil {
		t.Errorf("Other remotes should be unaffected: %v", err)
	}

	now = now.Add(lockoutDuration + time.Second)
	if err := manager.Authenticate(p.Token, remote); err != nil {
		t.Errorf("Lockout should have expired: %v", err)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	manager := newTestManager(t, true)

	p, err := manager.Pair("Test Client")
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	const remote = "192.168.1.2"
	for i := 0; i < maxAuthFailures-1; i++ {
		manager.Authenticate("wrong", remote)
	}
	if err := manager.Authenticate(p.Token, remote); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	manager.Authenticate("wrong", remote)
	if manager.IsLockedOut(remote) {
		t.Error("Failure count should reset after a success")
	}
}

func TestHashToken(t *testing.T) {
	hash1 := HashToken("test-token-123")
	hash2 := HashToken("test-token-123")
	if hash1 != hash2 {
		t.Error("Same token should produce same hash")
	}
	if hash1 == HashToken("different-token") {
		t.Error("Different tokens should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("Expected hash length 64, got %d", len(hash1))
	}
}
