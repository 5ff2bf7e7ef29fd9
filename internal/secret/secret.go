// Package secret persists passcodes as bcrypt hashes keyed by owner and adapts them to
// passcode.SecretStore.
package secret

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/passcode/internal/passcode"
)

// ErrNotFound is returned by repositories when an owner has no passcode.
var ErrNotFound = errors.New("passcode not found")

// Repository persists passcode hashes by owner.
type Repository interface {
	Get(ctx context.Context, owner string) ([]byte, error)
	Put(ctx context.Context, owner string, hash []byte) error
	Delete(ctx context.Context, owner string) error
}

// Hasher hashes passcodes with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. A zero cost selects bcrypt.DefaultCost.
func NewHasher(cost int) (Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Hasher{}, fmt.Errorf("bcrypt cost %d out of range %d..%d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of pin.
func (h Hasher) Hash(pin string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pin), h.cost)
}

// Hashed is a stored bcrypt hash.
type Hashed []byte

// Matches reports whether pin hashes to the stored value.
func (h Hashed) Matches(pin string) bool {
	return bcrypt.CompareHashAndPassword(h, []byte(pin)) == nil
}

// Store binds a repository to one owner.
type Store struct {
	repo   Repository
	hasher Hasher
	owner  string
}

// NewStore returns the passcode.SecretStore for owner.
func NewStore(repo Repository, hasher Hasher, owner string) *Store {
	return &Store{repo: repo, hasher: hasher, owner: owner}
}

func (s *Store) Read(ctx context.Context) (passcode.Secret, error) {
	hash, err := s.repo.Get(ctx, s.owner)
	if errors.Is(err, ErrNotFound) {
		return nil, passcode.ErrNoSecret
	}
	if err != nil {
		return nil, fmt.Errorf("get passcode: %w", err)
	}
	return Hashed(hash), nil
}

func (s *Store) Write(ctx context.Context, pin string) error {
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return fmt.Errorf("hash passcode: %w", err)
	}
	if err := s.repo.Put(ctx, s.owner, hash); err != nil {
		return fmt.Errorf("put passcode: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.owner); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete passcode: %w", err)
	}
	return nil
}

// Exists reports whether owner has a passcode.
func Exists(ctx context.Context, repo Repository, owner string) (bool, error) {
	_, err := repo.Get(ctx, owner)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Open returns the repository for backend ("memory", "redis" or "postgres"). The
// Postgres schema is created when missing.
func Open(ctx context.Context, backend string, db *pgxpool.Pool, cache *redis.Client) (Repository, error) {
	switch backend {
	case "memory":
		return NewMemoryRepository(), nil
	case "redis":
		if cache == nil {
			return nil, errors.New("redis client is required for the redis passcode store")
		}
		return NewRedisRepository(cache), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres pool is required for the postgres passcode store")
		}
		repo := NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure passcode schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown passcode store %q", backend)
	}
}
