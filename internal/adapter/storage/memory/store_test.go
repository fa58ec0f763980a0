package memory

import (
	"context"
	"testing"
	"time"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func seedCredential(t *testing.T, store *Store, hash string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, NewCredentialRepo(store).Create(context.Background(), &domain.CredentialRecord{
		PrincipalID: id,
		Hash:        hash,
		UpdatedAt:   baseTime,
	}))
	return id
}

func TestTx_CommitAppliesStagedWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	creds := NewCredentialRepo(store)
	history := NewCredentialHistoryRepo(store)
	pid := seedCredential(t, store, "H0")

	tx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)

	cur, err := creds.GetForUpdate(ctx, tx, pid)
	require.NoError(t, err)
	require.NotNil(t, cur)
	require.NoError(t, history.Create(ctx, tx, &domain.CredentialHistoryEntry{
		ID: uuid.New(), PrincipalID: pid, PriorHash: cur.Hash, Reason: domain.ReasonUserRequested, RecordedAt: baseTime,
	}))
	require.NoError(t, creds.UpdateHash(ctx, tx, pid, "H1", baseTime))

	// Nothing is visible before commit.
	entries, err := history.ListByPrincipal(ctx, pid, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, tx.Commit(ctx))

	entries, err = history.ListByPrincipal(ctx, pid, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "H0", entries[0].PriorHash)
	assert.Equal(t, "H1", store.credentials[pid].Hash)
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestTx_RollbackDiscardsStagedWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	creds := NewCredentialRepo(store)
	pid := seedCredential(t, store, "H0")

	tx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)
	_, err = creds.GetForUpdate(ctx, tx, pid)
	require.NoError(t, err)
	require.NoError(t, creds.UpdateHash(ctx, tx, pid, "H1", baseTime))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, "H0", store.credentials[pid].Hash)
}

func TestTx_GetForUpdateBlocksUntilRelease(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	creds := NewCredentialRepo(store)
	pid := seedCredential(t, store, "H0")
	transactor := NewTransactor(store)

	first, err := transactor.Begin(ctx)
	require.NoError(t, err)
	_, err = creds.GetForUpdate(ctx, first, pid)
	require.NoError(t, err)

	second, err := transactor.Begin(ctx)
	require.NoError(t, err)
	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = creds.GetForUpdate(timeoutCtx, second, pid)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Rollback(ctx))

	_, err = creds.GetForUpdate(ctx, second, pid)
	assert.NoError(t, err)
	require.NoError(t, second.Rollback(ctx))
}

func TestCredentialRepo_GetForUpdate_Unknown(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	tx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	rec, err := NewCredentialRepo(store).GetForUpdate(ctx, tx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRepos_RejectForeignTx(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	type foreignTx struct{ pgx.Tx }

	_, err := NewCredentialRepo(store).GetForUpdate(ctx, &foreignTx{}, uuid.New())
	assert.ErrorIs(t, err, ErrForeignTx)
	_, err = NewCredentialHistoryRepo(store).TrimExcess(ctx, &foreignTx{}, uuid.New(), 3)
	assert.ErrorIs(t, err, ErrForeignTx)
}

func TestCredentialHistoryRepo_TrimCountsStagedInserts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	history := NewCredentialHistoryRepo(store)
	pid := seedCredential(t, store, "H0")
	transactor := NewTransactor(store)

	for i := 0; i < 3; i++ {
		tx, err := transactor.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, history.Create(ctx, tx, &domain.CredentialHistoryEntry{
			ID: uuid.New(), PrincipalID: pid, PriorHash: string(rune('a' + i)), RecordedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}))
		trimmed, err := history.TrimExcess(ctx, tx, pid, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(max(i+1-2, 0)), trimmed)
		require.NoError(t, tx.Commit(ctx))
	}

	entries, err := history.ListByPrincipal(ctx, pid, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].PriorHash)
	assert.Equal(t, "b", entries[1].PriorHash)
}

func TestCredentialHistoryRepo_SameInstantUsesInsertionOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	history := NewCredentialHistoryRepo(store)
	pid := seedCredential(t, store, "H0")

	tx, err := NewTransactor(store).Begin(ctx)
	require.NoError(t, err)
	for _, h := range []string{"first", "second"} {
		require.NoError(t, history.Create(ctx, tx, &domain.CredentialHistoryEntry{
			ID: uuid.New(), PrincipalID: pid, PriorHash: h, RecordedAt: baseTime,
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	entries, err := history.ListByPrincipal(ctx, pid, 10)
	require.NoError(t, err)
	assert.Equal(t, "second", entries[0].PriorHash)
}

func newEvent(category domain.EventCategory, at time.Time) *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:         uuid.New(),
		Category:   category,
		Severity:   domain.SeverityInfo,
		Action:     "VIEW_RECORD",
		OccurredAt: at,
	}
}

func TestAuditEventRepo_InsertAssignsSeqAndCopies(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()

	e := newEvent(domain.CategoryAccess, baseTime)
	e.EntityName = strPtr("Invoice")
	require.NoError(t, repo.Insert(ctx, e))
	assert.Equal(t, int64(1), e.Seq)

	*e.EntityName = "Mutated"
	e.Action = "MUTATED"

	items, _, err := repo.List(ctx, ports.AuditListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Invoice", *items[0].EntityName)
	assert.Equal(t, "VIEW_RECORD", items[0].Action)
}

func TestAuditEventRepo_OrderingTiesBySeq(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()

	older := newEvent(domain.CategoryAccess, baseTime)
	sameA := newEvent(domain.CategoryAccess, baseTime.Add(time.Minute))
	sameB := newEvent(domain.CategoryAccess, baseTime.Add(time.Minute))
	for _, e := range []*domain.AuditEvent{sameA, older, sameB} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	items, total, err := repo.List(ctx, ports.AuditListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uuid.UUID{sameB.ID, sameA.ID, older.ID}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})
}

func TestAuditEventRepo_ListFilters(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()
	actor := uuid.New()

	a := newEvent(domain.CategoryAccess, baseTime)
	a.ActorID = &actor
	a.Detail = "Opened Invoice 50%"
	a.TenantScope = strPtr("unit-1")
	a.SourceIP = "192.0.2.10"
	read := domain.OperationRead
	a.Operation = &read
	b := newEvent(domain.CategoryError, baseTime.Add(time.Hour))
	b.Action = "EXPORT_FAILED"
	b.TenantScope = strPtr("unit-2")
	for _, e := range []*domain.AuditEvent{a, b} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	tests := []struct {
		name   string
		filter domain.AuditFilter
		want   []uuid.UUID
	}{
		{"actor", domain.AuditFilter{ActorID: &actor}, []uuid.UUID{a.ID}},
		{"tenant", domain.AuditFilter{TenantScope: strPtr("unit-2")}, []uuid.UUID{b.ID}},
		{"search detail case-insensitive", domain.AuditFilter{Search: "invoice 50%"}, []uuid.UUID{a.ID}},
		{"search action", domain.AuditFilter{Search: "export"}, []uuid.UUID{b.ID}},
		{"date to inclusive", domain.AuditFilter{DateTo: &baseTime}, []uuid.UUID{a.ID}},
		{"operation", domain.AuditFilter{Operation: &read}, []uuid.UUID{a.ID}},
		{"source ip", domain.AuditFilter{SourceIP: strPtr("192.0.2.10")}, []uuid.UUID{a.ID}},
		{"source ip no match", domain.AuditFilter{SourceIP: strPtr("198.51.100.1")}, nil},
		{"conjunctive", domain.AuditFilter{ActorID: &actor, TenantScope: strPtr("unit-2")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.List(ctx, ports.AuditListParams{Filter: tt.filter, Page: 1, PageSize: 10})
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), total)
			got := make([]uuid.UUID, 0, len(items))
			for _, it := range items {
				got = append(got, it.ID)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestAuditEventRepo_ListByActor_ScopeAppliesBeforeLimit(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()
	actor := uuid.New()

	mine := newEvent(domain.CategoryAccess, baseTime)
	mine.ActorID = &actor
	mine.TenantScope = strPtr("unit-1")
	require.NoError(t, repo.Insert(ctx, mine))
	for i := 1; i <= 3; i++ {
		other := newEvent(domain.CategoryAccess, baseTime.Add(time.Duration(i)*time.Minute))
		other.ActorID = &actor
		other.TenantScope = strPtr("unit-2")
		require.NoError(t, repo.Insert(ctx, other))
	}

	items, err := repo.ListByActor(ctx, actor, strPtr("unit-1"), 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)

	items, err = repo.ListByActor(ctx, actor, nil, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAuditEventRepo_ListByEntity_Scoped(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()

	a := newEvent(domain.CategoryChange, baseTime)
	a.EntityName, a.EntityID, a.TenantScope = strPtr("Invoice"), strPtr("7"), strPtr("unit-1")
	b := newEvent(domain.CategoryChange, baseTime)
	b.EntityName, b.EntityID, b.TenantScope = strPtr("Invoice"), strPtr("7"), strPtr("unit-2")
	require.NoError(t, repo.Insert(ctx, a))
	require.NoError(t, repo.Insert(ctx, b))

	items, err := repo.ListByEntity(ctx, "Invoice", "7", strPtr("unit-2"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	items, err = repo.ListByEntity(ctx, "Invoice", "7", nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAuditEventRepo_PageBeyondEnd(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	require.NoError(t, repo.Insert(context.Background(), newEvent(domain.CategoryAccess, baseTime)))

	items, total, err := repo.List(context.Background(), ports.AuditListParams{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestAuditEventRepo_Statistics(t *testing.T) {
	store := NewStore()
	repo := NewAuditEventRepo(store)
	ctx := context.Background()
	dayStart := baseTime.Truncate(24 * time.Hour)
	alice, bob := uuid.New(), uuid.New()
	update := domain.OperationUpdate

	events := []*domain.AuditEvent{
		newEvent(domain.CategoryAccess, dayStart.Add(time.Hour)),
		newEvent(domain.CategoryAccess, dayStart.Add(2*time.Hour)),
		newEvent(domain.CategoryAccess, dayStart.Add(-time.Hour)),
		newEvent(domain.CategoryError, dayStart.Add(3*time.Hour)),
		newEvent(domain.CategoryChange, dayStart.Add(4*time.Hour)),
	}
	events[0].ActorID, events[0].EntityName = &alice, strPtr("Invoice")
	events[1].ActorID, events[1].EntityName = &alice, strPtr("Patient")
	events[2].ActorID, events[2].EntityName = &bob, strPtr("Invoice")
	events[3].Severity = domain.SeverityWarning
	events[4].Operation = &update
	events[4].TenantScope = strPtr("unit-9")
	for _, e := range events {
		require.NoError(t, repo.Insert(ctx, e))
	}

	stats, err := repo.Statistics(ctx, ports.AuditStatsParams{
		DayStart: dayStart,
		DayEnd:   dayStart.Add(24 * time.Hour),
		TopN:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.ByCategory[domain.CategoryAccess])
	assert.Equal(t, int64(1), stats.BySeverity[domain.SeverityWarning])
	assert.Equal(t, int64(1), stats.ByOperation[domain.OperationUpdate])
	assert.Equal(t, int64(2), stats.AccessToday)
	assert.Equal(t, int64(1), stats.ErrorsToday)
	assert.Equal(t, int64(1), stats.ActiveActorsToday, "bob's access was yesterday")
	assert.Equal(t, []domain.EntityCount{{EntityName: "Invoice", Count: 2}}, stats.TopEntities)

	scoped, err := repo.Statistics(ctx, ports.AuditStatsParams{
		TenantScope: strPtr("unit-9"),
		DayStart:    dayStart,
		DayEnd:      dayStart.Add(24 * time.Hour),
		TopN:        10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), scoped.Total)
	assert.Empty(t, scoped.TopEntities)
}
