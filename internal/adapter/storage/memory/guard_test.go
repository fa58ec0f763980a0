package memory_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"audit-ledger/internal/adapter/storage/memory"
	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/internal/service"
	"audit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyLimit = 3

type ledger struct {
	store   *memory.Store
	creds   *memory.CredentialRepo
	history *memory.CredentialHistoryRepo
	events  *memory.AuditEventRepo
	hasher  *service.Argon2HashService
	audit   *service.AuditServiceImpl
	guard   *service.CredentialServiceImpl
}

func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newLedger(t *testing.T, historyRepo ports.CredentialHistoryRepository) *ledger {
	t.Helper()
	log := zerolog.New(io.Discard)
	store := memory.NewStore()
	l := &ledger{
		store:   store,
		creds:   memory.NewCredentialRepo(store),
		history: memory.NewCredentialHistoryRepo(store),
		events:  memory.NewAuditEventRepo(store),
		hasher: service.NewArgon2HashServiceWithParams(service.Argon2Params{
			Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16,
		}),
	}
	if historyRepo == nil {
		historyRepo = l.history
	}
	clock := tickingClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	l.audit = service.NewAuditService(l.events, service.DefaultAuditConfig(), log).WithClock(clock)
	l.guard = service.NewCredentialService(
		l.creds, historyRepo, memory.NewTransactor(store), l.hasher, l.audit, historyLimit, log,
	).WithClock(clock)
	return l
}

func (l *ledger) seed(t *testing.T, secret string) uuid.UUID {
	t.Helper()
	hash, err := l.hasher.Hash(secret)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, l.creds.Create(context.Background(), &domain.CredentialRecord{
		PrincipalID: id, Hash: hash, UpdatedAt: time.Now().UTC(),
	}))
	return id
}

func (l *ledger) change(pid uuid.UUID, current, next string) (*domain.ChangeResult, error) {
	return l.guard.ChangeCredential(context.Background(), ports.ChangeCredentialRequest{
		PrincipalID:   pid,
		CurrentSecret: current,
		NewSecret:     next,
		ConfirmSecret: next,
		Context:       domain.ChangeContext{Provenance: domain.Provenance{SourceIP: "203.0.113.9", UserAgent: "test"}},
	})
}

func (l *ledger) currentHash(t *testing.T, pid uuid.UUID) string {
	t.Helper()
	ctx := context.Background()
	tx, err := memory.NewTransactor(l.store).Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck
	rec, err := l.creds.GetForUpdate(ctx, tx, pid)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.Hash
}

// historySecrets maps each stored prior hash back to the secret it was derived from.
func (l *ledger) historySecrets(t *testing.T, pid uuid.UUID, candidates ...string) []string {
	t.Helper()
	entries, err := l.history.ListByPrincipal(context.Background(), pid, 100)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := "?"
		for _, c := range candidates {
			if ok, _ := l.hasher.Verify(c, e.PriorHash); ok {
				name = c
				break
			}
		}
		out = append(out, name)
	}
	return out
}

func TestGuard_Scenario(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "S0")
	all := []string{"S0", "A", "B", "C", "D"}

	_, err := l.change(pid, "S0", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"S0"}, l.historySecrets(t, pid, all...))

	_, err = l.change(pid, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "S0"}, l.historySecrets(t, pid, all...))

	_, err = l.change(pid, "B", "A")
	assert.True(t, apperror.HasCode(err, apperror.CodeRecentlyUsed))

	_, err = l.change(pid, "B", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "S0"}, l.historySecrets(t, pid, all...))

	_, err = l.change(pid, "C", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, l.historySecrets(t, pid, all...), "oldest entry is trimmed")

	changes, err := l.guard.History(context.Background(), pid)
	require.NoError(t, err)
	assert.Len(t, changes, historyLimit)
}

func TestGuard_HistoryBound(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "s-0")

	for i := 1; i <= 8; i++ {
		_, err := l.change(pid, fmt.Sprintf("s-%d", i-1), fmt.Sprintf("s-%d", i))
		require.NoError(t, err)

		changes, err := l.guard.History(context.Background(), pid)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(changes), historyLimit)

		entries, err := l.history.ListByPrincipal(context.Background(), pid, 100)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(entries), historyLimit, "storage holds no more than the bound")
	}
}

func TestGuard_SameAsCurrentLeavesStateUnchanged(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "S0")
	_, err := l.change(pid, "S0", "A")
	require.NoError(t, err)

	before := l.currentHash(t, pid)
	historyBefore, _ := l.history.ListByPrincipal(context.Background(), pid, 100)

	_, err = l.change(pid, "A", "A")
	assert.True(t, apperror.HasCode(err, apperror.CodeSameAsCurrent))

	historyAfter, _ := l.history.ListByPrincipal(context.Background(), pid, 100)
	assert.Equal(t, before, l.currentHash(t, pid))
	assert.Equal(t, historyBefore, historyAfter)
}

func TestGuard_RecentReuseRejectedFreshAccepted(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "s1")
	_, err := l.change(pid, "s1", "s2")
	require.NoError(t, err)
	_, err = l.change(pid, "s2", "s3")
	require.NoError(t, err)

	before := l.currentHash(t, pid)
	for _, reused := range []string{"s1", "s2"} {
		_, err := l.change(pid, "s3", reused)
		assert.True(t, apperror.HasCode(err, apperror.CodeRecentlyUsed), reused)
		assert.Equal(t, before, l.currentHash(t, pid))
	}

	_, err = l.change(pid, "s3", "never-used")
	assert.NoError(t, err)
}

func TestGuard_UnknownPrincipal(t *testing.T) {
	l := newLedger(t, nil)

	_, err := l.change(uuid.New(), "x", "y")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidCurrentCredential))
}

// failingTrim injects a fault after the new hash has been staged.
type failingTrim struct {
	*memory.CredentialHistoryRepo
}

func (f failingTrim) TrimExcess(context.Context, pgx.Tx, uuid.UUID, int) (int64, error) {
	return 0, errors.New("injected trim failure")
}

func TestGuard_TrimFailureRollsBack(t *testing.T) {
	l := newLedger(t, nil)
	faulty := newLedgerSharing(t, l, failingTrim{l.history})
	pid := l.seed(t, "S0")
	_, err := l.change(pid, "S0", "A")
	require.NoError(t, err)

	hashBefore := l.currentHash(t, pid)
	historyBefore, _ := l.history.ListByPrincipal(context.Background(), pid, 100)
	eventsBefore, _, _ := l.events.List(context.Background(), ports.AuditListParams{Page: 1, PageSize: 100})

	_, err = faulty.change(pid, "A", "B")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindStorage))

	historyAfter, _ := l.history.ListByPrincipal(context.Background(), pid, 100)
	eventsAfter, _, _ := l.events.List(context.Background(), ports.AuditListParams{Page: 1, PageSize: 100})
	assert.Equal(t, hashBefore, l.currentHash(t, pid))
	assert.Equal(t, historyBefore, historyAfter)
	assert.Len(t, eventsAfter, len(eventsBefore), "no audit event for a rolled back change")

	// The lock was released: a healthy guard can proceed.
	_, err = l.change(pid, "A", "B")
	assert.NoError(t, err)
}

// newLedgerSharing builds a guard over base's store with a substitute history repository.
func newLedgerSharing(t *testing.T, base *ledger, historyRepo ports.CredentialHistoryRepository) *ledger {
	t.Helper()
	l := *base
	l.guard = service.NewCredentialService(
		base.creds, historyRepo, memory.NewTransactor(base.store), base.hasher, base.audit, historyLimit, zerolog.New(io.Discard),
	)
	return &l
}

func TestGuard_AuditOnChange(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "S0")

	for i, next := range []string{"A", "B", "C"} {
		prev := []string{"S0", "A", "B"}[i]
		result, err := l.change(pid, prev, next)
		require.NoError(t, err)
		require.NotNil(t, result.AuditEventID)

		events, err := l.audit.ByEntity(context.Background(), domain.EntityPrincipal, pid.String(), nil)
		require.NoError(t, err)
		require.Len(t, events, i+1, "exactly one event per change")
		latest := events[0]
		assert.Equal(t, *result.AuditEventID, latest.ID)
		assert.Equal(t, domain.CategorySecurity, latest.Category)
		assert.Equal(t, domain.ActionCredentialChanged, latest.Action)
		require.NotNil(t, latest.ActorID)
		assert.Equal(t, pid, *latest.ActorID)
		assert.Equal(t, "203.0.113.9", latest.SourceIP)
	}
}

func TestGuard_ConcurrentChangesSerialize(t *testing.T) {
	l := newLedger(t, nil)
	pid := l.seed(t, "S0")

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.change(pid, "S0", fmt.Sprintf("next-%d", i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidCurrentCredential))
	}
	assert.Equal(t, 1, succeeded, "only the first change sees S0 as current")

	entries, err := l.history.ListByPrincipal(context.Background(), pid, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAudit_AppendOnlyAndPagination(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	actor := uuid.New()

	recorded := make(map[uuid.UUID]domain.AuditEvent)
	for i := 0; i < 23; i++ {
		e, err := l.audit.RecordAccess(ctx, &actor, "VIEW_RECORD", "Invoice", fmt.Sprintf("view %d", i), domain.Provenance{})
		require.NoError(t, err)
		recorded[e.ID] = *e
	}

	page1, err := l.audit.Query(ctx, domain.AuditFilter{ActorID: &actor}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(23), page1.Total)
	assert.Equal(t, 3, page1.TotalPages)

	seen := make(map[uuid.UUID]bool)
	var previous *domain.AuditEvent
	for p := 1; p <= page1.TotalPages; p++ {
		page, err := l.audit.Query(ctx, domain.AuditFilter{ActorID: &actor}, p, 10)
		require.NoError(t, err)
		for i := range page.Items {
			e := page.Items[i]
			assert.False(t, seen[e.ID], "duplicate across pages")
			seen[e.ID] = true

			original := recorded[e.ID]
			original.Seq = e.Seq
			assert.Equal(t, original, e, "stored events never change")

			if previous != nil {
				assert.False(t, e.OccurredAt.After(previous.OccurredAt), "newest first")
			}
			previous = &page.Items[i]
		}
	}
	assert.Len(t, seen, 23)
}
