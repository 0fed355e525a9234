// Package authstore is the small in-memory API-key store the gateway's
// JWT-issuing login endpoint checks credentials against. Secrets are
// bcrypt-hashed; plaintext is returned exactly once, at issue time.
package authstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Identity is what a successfully authenticated API key resolves to.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// ErrUnknownKey is returned when a presented key ID has no matching entry
// or its secret does not match the stored hash.
var ErrUnknownKey = errors.New("unknown or invalid api key")

type entry struct {
	Identity
	hash []byte
}

// Store holds bcrypt-hashed API key secrets keyed by a public key ID. It
// never stores a plaintext secret after Issue returns it.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Issue mints a fresh (keyID, secret) pair for username/role, stores the
// bcrypt hash of the secret, and returns the plaintext secret exactly
// once - callers must persist it themselves, nothing else will.
func (s *Store) Issue(userID, username, role string) (keyID, secret string, err error) {
	keyID, err = randomToken(12)
	if err != nil {
		return "", "", err
	}
	secret, err = randomToken(24)
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.entries[keyID] = entry{Identity: Identity{UserID: userID, Username: username, Role: role}, hash: hash}
	s.mu.Unlock()

	return keyID, secret, nil
}

// Authenticate verifies secret against the stored hash for keyID.
func (s *Store) Authenticate(keyID, secret string) (Identity, error) {
	s.mu.RLock()
	e, ok := s.entries[keyID]
	s.mu.RUnlock()
	if !ok {
		return Identity{}, ErrUnknownKey
	}
	if err := bcrypt.CompareHashAndPassword(e.hash, []byte(secret)); err != nil {
		return Identity{}, ErrUnknownKey
	}
	return e.Identity, nil
}

// Revoke removes a key from the store.
func (s *Store) Revoke(keyID string) {
	s.mu.Lock()
	delete(s.entries, keyID)
	s.mu.Unlock()
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
