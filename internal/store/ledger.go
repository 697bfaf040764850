// Package store persists recovery-run parameters and outcomes to Postgres
// via pgx, following a "connect, warn and continue without persistence if
// unavailable" policy: nothing in internal/engine depends on this package
// existing or succeeding.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/hitag2-corrattack/internal/cipher"
)

//go:embed schema.sql
var schemaSQL string

// Ledger persists recovery-run records to Postgres.
type Ledger struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	log.Println("store: connected to recovery-run ledger")
	return &Ledger{pool: pool}, nil
}

// Close releases the connection pool.
func (l *Ledger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

// InitSchema creates the ledger's tables if they don't already exist.
func (l *Ledger) InitSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: failed to apply schema: %w", err)
	}
	return nil
}

// RunParams describes a recovery attempt's configuration, recorded at the
// start of a run.
type RunParams struct {
	UIDHex       string
	BeamWidth    uint32
	Workers      uint32
	Epsilon      float64
	Window       int
	Observations int
}

// StartRun inserts a new running record and returns its id.
func (l *Ledger) StartRun(ctx context.Context, params RunParams) (uuid.UUID, error) {
	id := uuid.New()
	const q = `
		INSERT INTO recovery_runs (run_id, uid_hex, beam_width, workers, epsilon, window_bits, observations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.pool.Exec(ctx, q, id, params.UIDHex, params.BeamWidth, params.Workers, params.Epsilon, params.Window, params.Observations)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun records a run's terminal outcome: the recovered key on
// success, or "no_key_found" / "invalid_input" / "resource_exhausted" on
// failure.
func (l *Ledger) FinishRun(ctx context.Context, id uuid.UUID, key *cipher.Key, outcome string) error {
	var keyHex *string
	if key != nil {
		s := key.String()
		keyHex = &s
	}
	const q = `
		UPDATE recovery_runs
		SET finished_at = NOW(), recovered_key = $2, outcome = $3
		WHERE run_id = $1
	`
	_, err := l.pool.Exec(ctx, q, id, keyHex, outcome)
	if err != nil {
		return fmt.Errorf("store: failed to finalize run: %w", err)
	}
	return nil
}
