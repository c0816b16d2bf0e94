// Package ledger is the append-only sequence store: one counter and one
// chain hash per (tenant, emission unit) key. The orchestrator is the
// only caller; it opens a lease per emission, commits on authority
// acceptance and rolls back on any other outcome, so a rejected or
// failed submission never consumes a counter value.
package ledger

import (
	"context"

	"github.com/rezonia/fatoora/internal/model"
)

// SeedHash is the previous-invoice-hash for the first invoice of a key:
// the Base64 of the hex SHA-256 of "0".
const SeedHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// Lease is an open reservation of the next counter value for a key.
// Emissions for the same key are serialized by the lease: a second
// Begin blocks until the first lease commits or rolls back.
type Lease interface {
	// Counter is the value the current emission will use (previous + 1)
	Counter() int64

	// PreviousHash is the chain hash recorded after the last accepted
	// invoice, or SeedHash if none has been accepted yet
	PreviousHash() string

	// Commit persists the incremented counter and the new chain hash.
	// Called only after the authority has accepted the invoice.
	Commit(ctx context.Context, chainHash string) error

	// Rollback releases the lease leaving the ledger untouched
	Rollback(ctx context.Context) error
}

// Ledger hands out leases per sequence key. Entries are created lazily
// on first use and are never deleted during normal operation.
type Ledger interface {
	Begin(ctx context.Context, key model.SequenceKey) (Lease, error)

	// State returns the committed state for a key without locking it,
	// for status display. A fresh key reports counter 0 and SeedHash.
	State(ctx context.Context, key model.SequenceKey) (model.SequenceState, error)
}
