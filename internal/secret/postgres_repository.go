package secret

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table used by PostgresRepository.
const Schema = `CREATE TABLE IF NOT EXISTS passcodes (
    owner_id   TEXT PRIMARY KEY,
    pin_hash   BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed passcode repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the passcodes table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

// Get fetches the hash for owner.
func (r *PostgresRepository) Get(ctx context.Context, owner string) ([]byte, error) {
	var hash []byte
	err := r.db.QueryRow(ctx, `SELECT pin_hash FROM passcodes WHERE owner_id = $1`, owner).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hash, nil
}

// Put inserts or replaces the hash for owner.
func (r *PostgresRepository) Put(ctx context.Context, owner string, hash []byte) error {
	_, err := r.db.Exec(ctx, `INSERT INTO passcodes (owner_id, pin_hash, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO UPDATE SET pin_hash = EXCLUDED.pin_hash, updated_at = EXCLUDED.updated_at`,
		owner, hash, time.Now().UTC())
	return err
}

// Delete removes the hash for owner.
func (r *PostgresRepository) Delete(ctx context.Context, owner string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM passcodes WHERE owner_id = $1`, owner)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
