package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezonia/fatoora/internal/model"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS invoice_sequences (
	tenant_id  TEXT   NOT NULL,
	unit_id    TEXT   NOT NULL,
	counter    BIGINT NOT NULL DEFAULT 0,
	chain_hash TEXT   NOT NULL,
	PRIMARY KEY (tenant_id, unit_id)
)`

// PostgresLedger stores sequence state in a Postgres row per key. A
// lease is an open transaction holding the row lock, so same-key
// emissions serialize across instances while other keys are untouched.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a ledger over an existing pool
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Connect opens a pool and ensures the sequence table exists
func Connect(ctx context.Context, dsn string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	l := &PostgresLedger{pool: pool}
	if err := l.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// Migrate creates the sequence table if missing
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, createTableSQL)
	return err
}

// Close releases the connection pool
func (l *PostgresLedger) Close() {
	l.pool.Close()
}

// Begin opens a transaction, lazily creates the row and locks it
func (l *PostgresLedger) Begin(ctx context.Context, key model.SequenceKey) (Lease, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO invoice_sequences (tenant_id, unit_id, counter, chain_hash)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (tenant_id, unit_id) DO NOTHING`,
		key.TenantID, key.UnitID, SeedHash)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	var state model.SequenceState
	err = tx.QueryRow(ctx,
		`SELECT counter, chain_hash FROM invoice_sequences
		 WHERE tenant_id = $1 AND unit_id = $2
		 FOR UPDATE`,
		key.TenantID, key.UnitID).Scan(&state.Counter, &state.ChainHash)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	return &postgresLease{
		key:     key,
		tx:      tx,
		counter: state.Counter + 1,
		prev:    state.ChainHash,
	}, nil
}

// State reads the committed state outside any lease
func (l *PostgresLedger) State(ctx context.Context, key model.SequenceKey) (model.SequenceState, error) {
	var state model.SequenceState
	err := l.pool.QueryRow(ctx,
		`SELECT counter, chain_hash FROM invoice_sequences
		 WHERE tenant_id = $1 AND unit_id = $2`,
		key.TenantID, key.UnitID).Scan(&state.Counter, &state.ChainHash)
	if err == pgx.ErrNoRows {
		return model.SequenceState{Counter: 0, ChainHash: SeedHash}, nil
	}
	if err != nil {
		return model.SequenceState{}, err
	}
	return state, nil
}

type postgresLease struct {
	key     model.SequenceKey
	tx      pgx.Tx
	counter int64
	prev    string
	done    bool
}

func (le *postgresLease) Counter() int64       { return le.counter }
func (le *postgresLease) PreviousHash() string { return le.prev }

func (le *postgresLease) Commit(ctx context.Context, chainHash string) error {
	if le.done {
		return model.NewSequenceConflictError(le.key, le.counter, -1)
	}
	le.done = true

	tag, err := le.tx.Exec(ctx,
		`UPDATE invoice_sequences
		 SET counter = $3, chain_hash = $4
		 WHERE tenant_id = $1 AND unit_id = $2 AND counter = $5`,
		le.key.TenantID, le.key.UnitID, le.counter, chainHash, le.counter-1)
	if err != nil {
		_ = le.tx.Rollback(ctx)
		return err
	}
	if tag.RowsAffected() != 1 {
		// row lock should make this impossible
		_ = le.tx.Rollback(ctx)
		return model.NewSequenceConflictError(le.key, le.counter-1, -1)
	}
	return le.tx.Commit(ctx)
}

func (le *postgresLease) Rollback(ctx context.Context) error {
	if le.done {
		return nil
	}
	le.done = true
	return le.tx.Rollback(ctx)
}
