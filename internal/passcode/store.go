package passcode

import (
	"context"
	"crypto/subtle"
	"sync"
)

// Secret is a stored passcode that can be tested for equality without exposing its value.
type Secret interface {
	Matches(pin string) bool
}

// SecretStore is the persistence capability a flow depends on. Read returns ErrNoSecret
// when no passcode has been created yet.
type SecretStore interface {
	Read(ctx context.Context) (Secret, error)
	Write(ctx context.Context, pin string) error
	Clear(ctx context.Context) error
}

// PlainSecret compares against an unhashed value in constant time.
type PlainSecret string

func (s PlainSecret) Matches(pin string) bool {
	if len(s) != len(pin) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(pin)) == 1
}

// MemoryStore keeps a single unhashed secret in memory.
type MemoryStore struct {
	mu     sync.Mutex
	secret string
	set    bool
}

// NewMemoryStore returns a store seeded with pin, or an empty store when pin is "".
func NewMemoryStore(pin string) *MemoryStore {
	return &MemoryStore{secret: pin, set: pin != ""}
}

func (m *MemoryStore) Read(_ context.Context) (Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, ErrNoSecret
	}
	return PlainSecret(m.secret), nil
}

func (m *MemoryStore) Write(_ context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = pin
	m.set = true
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = ""
	m.set = false
	return nil
}

// Value returns the stored pin and whether one is set.
func (m *MemoryStore) Value() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret, m.set
}
