package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CredentialRepo implements ports.CredentialRepository.
type CredentialRepo struct {
	pool Pool
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(pool Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Create stores a principal's initial credential. Used for provisioning and tests.
func (r *CredentialRepo) Create(ctx context.Context, c *domain.CredentialRecord) error {
	query := `INSERT INTO principal_credentials (principal_id, hash, updated_at) VALUES ($1, $2, $3)`

	_, err := r.pool.Exec(ctx, query, c.PrincipalID, c.Hash, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetForUpdate fetches the principal's credential with pessimistic locking.
// This MUST be called within a transaction. Returns nil if the principal has no credential.
func (r *CredentialRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) (*domain.CredentialRecord, error) {
	query := `SELECT principal_id, hash, updated_at
		FROM principal_credentials WHERE principal_id = $1 FOR UPDATE`

	c := &domain.CredentialRecord{}
	err := tx.QueryRow(ctx, query, principalID).Scan(&c.PrincipalID, &c.Hash, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential for update: %w", err)
	}
	return c, nil
}

// UpdateHash overwrites the principal's current hash within a transaction.
func (r *CredentialRepo) UpdateHash(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, hash string, updatedAt time.Time) error {
	query := `UPDATE principal_credentials SET hash = $1, updated_at = $2 WHERE principal_id = $3`

	tag, err := tx.Exec(ctx, query, hash, updatedAt, principalID)
	if err != nil {
		return fmt.Errorf("update credential hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential not found: %s", principalID)
	}
	return nil
}
