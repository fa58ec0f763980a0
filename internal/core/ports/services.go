package ports

import (
	"context"
	"time"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// HashService derives and verifies one-way credential hashes.
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles bearer token operations. Tokens are issued by the
// identity provider; Generate exists for tooling and tests.
type TokenService interface {
	Generate(principalID uuid.UUID, tenantScope string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	PrincipalID uuid.UUID
	TenantScope string
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// AuditService is the append-only audit trail.
type AuditService interface {
	Record(ctx context.Context, in domain.AuditEventInput) (*domain.AuditEvent, error)
	RecordAccess(ctx context.Context, actorID *uuid.UUID, action, entityName, detail string, prov domain.Provenance) (*domain.AuditEvent, error)
	RecordChange(ctx context.Context, req RecordChangeRequest) (*domain.AuditEvent, error)
	RecordError(ctx context.Context, actorID *uuid.UUID, action, detail string, severity domain.Severity, prov domain.Provenance) (*domain.AuditEvent, error)
	RecordLoginAttempt(ctx context.Context, login string, success bool, actorID *uuid.UUID, prov domain.Provenance) (*domain.AuditEvent, error)

	Query(ctx context.Context, filter domain.AuditFilter, page, pageSize int) (*domain.AuditPage, error)
	ByActor(ctx context.Context, actorID uuid.UUID, tenantScope *string, limit int) ([]domain.AuditEvent, error)
	ByEntity(ctx context.Context, entityName, entityID string, tenantScope *string) ([]domain.AuditEvent, error)
	Statistics(ctx context.Context, scope StatisticsScope) (*domain.AuditStatistics, error)
}

// RecordChangeRequest describes a data change to audit.
type RecordChangeRequest struct {
	ActorID     *uuid.UUID
	EntityName  string
	EntityID    string
	Operation   domain.Operation
	TenantScope *string
	Before      map[string]any
	After       map[string]any
	Provenance  domain.Provenance
}

// StatisticsScope narrows statistics to a tenant and picks the calendar
// used for "today". A nil Location uses the configured zone.
type StatisticsScope struct {
	TenantScope *string
	Location    *time.Location
}

// CredentialService enforces credential reuse policy and keeps history.
type CredentialService interface {
	ChangeCredential(ctx context.Context, req ChangeCredentialRequest) (*domain.ChangeResult, error)
	History(ctx context.Context, principalID uuid.UUID) ([]domain.CredentialChange, error)
}

// ChangeCredentialRequest holds input for a credential change.
type ChangeCredentialRequest struct {
	PrincipalID   uuid.UUID
	CurrentSecret string
	NewSecret     string
	ConfirmSecret string
	Context       domain.ChangeContext
}
