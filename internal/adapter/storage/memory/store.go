// Package memory is a process-local storage backend for development, the CLI
// and tests. It honours the same ordering, locking and atomicity rules as the
// PostgreSQL adapter.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction that
// was not started by this store's Transactor.
var ErrForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds all state. One mutex guards the maps; per-principal locks
// serialize credential changes the way SELECT ... FOR UPDATE does.
type Store struct {
	mu sync.RWMutex

	events  []domain.AuditEvent
	lastSeq int64

	credentials map[uuid.UUID]domain.CredentialRecord
	history     map[uuid.UUID][]historyRow
	historySeq  int64

	lockMu sync.Mutex
	locks  map[uuid.UUID]chan struct{}
}

type historyRow struct {
	entry domain.CredentialHistoryEntry
	seq   int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		credentials: make(map[uuid.UUID]domain.CredentialRecord),
		history:     make(map[uuid.UUID][]historyRow),
		locks:       make(map[uuid.UUID]chan struct{}),
	}
}

func (s *Store) principalLock(id uuid.UUID) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor bound to store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a transaction. Writes are staged and applied atomically on Commit.
func (t *Transactor) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{store: t.store, pending: make(map[uuid.UUID]int)}, nil
}

// Tx is a staged-write transaction. Only Commit and Rollback are supported;
// the embedded pgx.Tx is nil and any other method panics.
type Tx struct {
	pgx.Tx

	store   *Store
	ops     []func(s *Store)
	pending map[uuid.UUID]int // staged history inserts per principal
	held    []chan struct{}
	done    bool
}

// Commit applies all staged writes under one store lock and releases row locks.
func (tx *Tx) Commit(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true

	tx.store.mu.Lock()
	for _, op := range tx.ops {
		op(tx.store)
	}
	tx.store.mu.Unlock()

	tx.release()
	return nil
}

// Rollback discards staged writes and releases row locks.
func (tx *Tx) Rollback(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.ops = nil
	tx.release()
	return nil
}

func (tx *Tx) lock(ctx context.Context, id uuid.UUID) error {
	l := tx.store.principalLock(id)
	for _, h := range tx.held {
		if h == l {
			return nil
		}
	}
	select {
	case l <- struct{}{}:
		tx.held = append(tx.held, l)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tx *Tx) release() {
	for _, l := range tx.held {
		<-l
	}
	tx.held = nil
}

func (tx *Tx) stage(op func(s *Store)) {
	tx.ops = append(tx.ops, op)
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, ErrForeignTx
	}
	return t, nil
}

func cloneEvent(e domain.AuditEvent) domain.AuditEvent {
	out := e
	if e.ActorID != nil {
		id := *e.ActorID
		out.ActorID = &id
	}
	if e.Operation != nil {
		op := *e.Operation
		out.Operation = &op
	}
	out.EntityName = cloneString(e.EntityName)
	out.EntityID = cloneString(e.EntityID)
	out.TenantScope = cloneString(e.TenantScope)
	if e.ChangeSnapshot != nil {
		out.ChangeSnapshot = append(json.RawMessage(nil), e.ChangeSnapshot...)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
