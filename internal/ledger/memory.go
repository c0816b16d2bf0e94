package ledger

import (
	"context"
	"sync"

	"github.com/rezonia/fatoora/internal/model"
)

// MemoryLedger is the in-process implementation: one mutex per key, so
// same-key emissions serialize and different keys proceed in parallel.
// Suitable for a single instance only; multi-instance deployments use
// PostgresLedger.
type MemoryLedger struct {
	mu     sync.Mutex
	states map[model.SequenceKey]*memoryEntry
}

type memoryEntry struct {
	lock  sync.Mutex
	state model.SequenceState
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{states: make(map[model.SequenceKey]*memoryEntry)}
}

func (l *MemoryLedger) entry(key model.SequenceKey) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.states[key]
	if !ok {
		e = &memoryEntry{state: model.SequenceState{Counter: 0, ChainHash: SeedHash}}
		l.states[key] = e
	}
	return e
}

// Begin acquires the per-key lock and returns a lease for counter+1
func (l *MemoryLedger) Begin(ctx context.Context, key model.SequenceKey) (Lease, error) {
	e := l.entry(key)
	e.lock.Lock()
	return &memoryLease{
		key:     key,
		entry:   e,
		counter: e.state.Counter + 1,
		prev:    e.state.ChainHash,
	}, nil
}

// State returns the committed state without acquiring the emission lock
func (l *MemoryLedger) State(ctx context.Context, key model.SequenceKey) (model.SequenceState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.states[key]; ok {
		return e.state, nil
	}
	return model.SequenceState{Counter: 0, ChainHash: SeedHash}, nil
}

type memoryLease struct {
	key     model.SequenceKey
	entry   *memoryEntry
	counter int64
	prev    string
	done    bool
}

func (le *memoryLease) Counter() int64       { return le.counter }
func (le *memoryLease) PreviousHash() string { return le.prev }

func (le *memoryLease) Commit(ctx context.Context, chainHash string) error {
	if le.done {
		return model.NewSequenceConflictError(le.key, le.counter, le.entry.state.Counter)
	}
	if le.entry.state.Counter != le.counter-1 {
		// counter moved underneath the lease: a locking bug
		le.done = true
		le.entry.lock.Unlock()
		return model.NewSequenceConflictError(le.key, le.counter-1, le.entry.state.Counter)
	}
	le.entry.state = model.SequenceState{Counter: le.counter, ChainHash: chainHash}
	le.done = true
	le.entry.lock.Unlock()
	return nil
}

func (le *memoryLease) Rollback(ctx context.Context) error {
	if le.done {
		return nil
	}
	le.done = true
	le.entry.lock.Unlock()
	return nil
}
