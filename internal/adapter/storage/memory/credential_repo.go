package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CredentialRepo implements ports.CredentialRepository in memory.
type CredentialRepo struct {
	store *Store
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(store *Store) *CredentialRepo {
	return &CredentialRepo{store: store}
}

// Create stores a principal's initial credential. Used for seeding.
func (r *CredentialRepo) Create(_ context.Context, c *domain.CredentialRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.credentials[c.PrincipalID]; ok {
		return fmt.Errorf("credential already exists: %s", c.PrincipalID)
	}
	r.store.credentials[c.PrincipalID] = *c
	return nil
}

// GetForUpdate takes the principal's lock for the life of tx and returns the
// committed credential, or nil if the principal has none.
func (r *CredentialRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) (*domain.CredentialRecord, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, principalID); err != nil {
		return nil, fmt.Errorf("lock credential: %w", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.credentials[principalID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// UpdateHash stages the overwrite of the principal's hash.
func (r *CredentialRepo) UpdateHash(_ context.Context, tx pgx.Tx, principalID uuid.UUID, hash string, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, ok := r.store.credentials[principalID]
	r.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("credential not found: %s", principalID)
	}

	t.stage(func(s *Store) {
		s.credentials[principalID] = domain.CredentialRecord{
			PrincipalID: principalID,
			Hash:        hash,
			UpdatedAt:   updatedAt,
		}
	})
	return nil
}

// CredentialHistoryRepo implements ports.CredentialHistoryRepository in memory.
type CredentialHistoryRepo struct {
	store *Store
}

// NewCredentialHistoryRepo creates a new CredentialHistoryRepo.
func NewCredentialHistoryRepo(store *Store) *CredentialHistoryRepo {
	return &CredentialHistoryRepo{store: store}
}

// ListRecent returns up to limit committed entries, newest first.
func (r *CredentialHistoryRepo) ListRecent(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.ListByPrincipal(ctx, principalID, limit)
}

// Create stages a history insert.
func (r *CredentialHistoryRepo) Create(_ context.Context, tx pgx.Tx, e *domain.CredentialHistoryEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	entry := *e
	t.pending[entry.PrincipalID]++
	t.stage(func(s *Store) {
		s.historySeq++
		s.history[entry.PrincipalID] = append(s.history[entry.PrincipalID], historyRow{entry: entry, seq: s.historySeq})
	})
	return nil
}

// TrimExcess stages removal of all but the newest keep entries, counting
// inserts already staged in tx.
func (r *CredentialHistoryRepo) TrimExcess(_ context.Context, tx pgx.Tx, principalID uuid.UUID, keep int) (int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}

	r.store.mu.RLock()
	size := len(r.store.history[principalID]) + t.pending[principalID]
	r.store.mu.RUnlock()

	excess := size - keep
	if excess <= 0 {
		return 0, nil
	}
	t.stage(func(s *Store) {
		rows := newestFirst(s.history[principalID])
		if len(rows) > keep {
			rows = rows[:keep]
		}
		s.history[principalID] = rows
	})
	return int64(excess), nil
}

// ListByPrincipal returns up to limit committed entries, newest first.
func (r *CredentialHistoryRepo) ListByPrincipal(_ context.Context, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error) {
	r.store.mu.RLock()
	rows := newestFirst(r.store.history[principalID])
	r.store.mu.RUnlock()

	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.CredentialHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry)
	}
	return out, nil
}

// newestFirst returns a sorted copy: recorded_at DESC, insertion order DESC.
func newestFirst(rows []historyRow) []historyRow {
	out := append([]historyRow(nil), rows...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].entry.RecordedAt.Equal(out[j].entry.RecordedAt) {
			return out[i].entry.RecordedAt.After(out[j].entry.RecordedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}
