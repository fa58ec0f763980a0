package postgres

import (
	"context"
	"fmt"

	"audit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const historyColumns = `id, principal_id, prior_hash, reason, source_ip, user_agent, recorded_at`

// historyOrder ranks a principal's entries newest first. seq is the insertion
// order and breaks ties between equal recorded_at values.
const historyOrder = "ORDER BY recorded_at DESC, seq DESC"

// CredentialHistoryRepo implements ports.CredentialHistoryRepository.
type CredentialHistoryRepo struct {
	pool Pool
}

// NewCredentialHistoryRepo creates a new CredentialHistoryRepo.
func NewCredentialHistoryRepo(pool Pool) *CredentialHistoryRepo {
	return &CredentialHistoryRepo{pool: pool}
}

// ListRecent returns the newest entries within the change transaction.
func (r *CredentialHistoryRepo) ListRecent(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM credential_history
		WHERE principal_id = $1 ` + historyOrder + ` LIMIT $2`

	rows, err := tx.Query(ctx, query, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent credential history: %w", err)
	}
	return collectHistory(rows)
}

// Create inserts a history entry within the change transaction. recorded_at
// is stamped by the database clock and written back to e.
func (r *CredentialHistoryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.CredentialHistoryEntry) error {
	query := `INSERT INTO credential_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		RETURNING recorded_at`

	err := tx.QueryRow(ctx, query,
		e.ID, e.PrincipalID, e.PriorHash, e.Reason, e.SourceIP, e.UserAgent,
	).Scan(&e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert credential history: %w", err)
	}
	return nil
}

// TrimExcess deletes every entry older than the newest keep entries.
func (r *CredentialHistoryRepo) TrimExcess(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, keep int) (int64, error) {
	query := `DELETE FROM credential_history
		WHERE principal_id = $1 AND seq NOT IN (
			SELECT seq FROM credential_history WHERE principal_id = $1
			` + historyOrder + ` LIMIT $2
		)`

	tag, err := tx.Exec(ctx, query, principalID, keep)
	if err != nil {
		return 0, fmt.Errorf("trim credential history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByPrincipal returns the newest entries outside any transaction.
func (r *CredentialHistoryRepo) ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit int) ([]domain.CredentialHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM credential_history
		WHERE principal_id = $1 ` + historyOrder + ` LIMIT $2`

	rows, err := r.pool.Query(ctx, query, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credential history: %w", err)
	}
	return collectHistory(rows)
}

func collectHistory(rows pgx.Rows) ([]domain.CredentialHistoryEntry, error) {
	defer rows.Close()

	entries := []domain.CredentialHistoryEntry{}
	for rows.Next() {
		var e domain.CredentialHistoryEntry
		err := rows.Scan(&e.ID, &e.PrincipalID, &e.PriorHash, &e.Reason, &e.SourceIP, &e.UserAgent, &e.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan credential history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential history rows: %w", err)
	}
	return entries, nil
}
