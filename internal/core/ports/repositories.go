package ports

import (
	"context"
	"time"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// AuditEventRepository persists audit events. It has no update or delete
// operation: events are append-only.
type AuditEventRepository interface {
	// Insert stores the event and assigns event.Seq.
	Insert(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, params AuditListParams) ([]domain.AuditEvent, int64, error)
	// ListByActor and ListByEntity restrict to tenantScope when it is non-nil.
	ListByActor(ctx context.Context, actorID uuid.UUID, tenantScope *string, limit int) ([]domain.AuditEvent, error)
	ListByEntity(ctx context.Context, entityName, entityID string, tenantScope *string) ([]domain.AuditEvent, error)
	Statistics(ctx context.Context, params AuditStatsParams) (*domain.AuditStatistics, error)
}

// AuditListParams holds filter + pagination for listing audit events.
type AuditListParams struct {
	Filter   domain.AuditFilter
	Page     int
	PageSize int
}

// AuditStatsParams scopes a statistics computation.
// DayStart and DayEnd bound "today" as [DayStart, DayEnd).
type AuditStatsParams struct {
	TenantScope *string
	DayStart    time.Time
	DayEnd      time.Time
	TopN        int
}

// CredentialRepository reads and overwrites a principal's current credential.
// Methods accepting pgx.Tx run inside the credential change transaction.
type CredentialRepository interface {
	// GetForUpdate locks the principal's credential row. Returns nil if absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) (*domain.CredentialRecord, error)
	UpdateHash(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, hash string, updatedAt time.Time) error
}

// CredentialHistoryRepository stores outgoing credential hashes.
type CredentialHistoryRepository interface {
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error)
	Create(ctx context.Context, tx pgx.Tx, entry *domain.CredentialHistoryEntry) error
	// TrimExcess deletes all but the newest keep entries and returns how many were removed.
	TrimExcess(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, keep int) (int64, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
