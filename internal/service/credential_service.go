package service

import (
	"context"
	"fmt"
	"time"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/internal/telemetry"
	"audit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHistoryLimit is the number of outgoing hashes kept per principal.
const DefaultHistoryLimit = 5

// CredentialServiceImpl implements ports.CredentialService.
type CredentialServiceImpl struct {
	credRepo     ports.CredentialRepository
	historyRepo  ports.CredentialHistoryRepository
	transactor   ports.DBTransactor
	hashSvc      ports.HashService
	auditSvc     ports.AuditService
	historyLimit int
	now          func() time.Time
	log          zerolog.Logger
}

// NewCredentialService creates a new CredentialServiceImpl. historyLimit < 1
// uses DefaultHistoryLimit.
func NewCredentialService(
	credRepo ports.CredentialRepository,
	historyRepo ports.CredentialHistoryRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	auditSvc ports.AuditService,
	historyLimit int,
	log zerolog.Logger,
) *CredentialServiceImpl {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &CredentialServiceImpl{
		credRepo:     credRepo,
		historyRepo:  historyRepo,
		transactor:   transactor,
		hashSvc:      hashSvc,
		auditSvc:     auditSvc,
		historyLimit: historyLimit,
		now:          time.Now,
		log:          log,
	}
}

// WithClock replaces the time source used for history timestamps.
func (s *CredentialServiceImpl) WithClock(now func() time.Time) *CredentialServiceImpl {
	s.now = now
	return s
}

// ChangeCredential replaces the principal's credential after checking the
// current secret and the reuse policy. Verification, history insert, hash
// overwrite and trim run in one transaction holding the principal's row lock.
//
// When the change commits but the CREDENTIAL_CHANGED event cannot be recorded,
// the result is returned together with an AUDIT_EMISSION_FAILED error.
func (s *CredentialServiceImpl) ChangeCredential(ctx context.Context, req ports.ChangeCredentialRequest) (*domain.ChangeResult, error) {
	log := s.log.With().Str("principal_id", req.PrincipalID.String()).Logger()

	if req.NewSecret == "" {
		return nil, s.reject(log, telemetry.OutcomeInvalidInput, apperror.Validation("new credential is required"))
	}
	if req.NewSecret != req.ConfirmSecret {
		return nil, s.reject(log, telemetry.OutcomeMismatchedConfirmation, apperror.ErrMismatchedConfirmation())
	}
	reason := req.Context.Reason
	if reason == "" {
		reason = domain.ReasonUserRequested
	}
	if !reason.Valid() {
		return nil, s.reject(log, telemetry.OutcomeInvalidInput, apperror.Validation("unknown change reason"))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock the principal's credential row for the rest of the transaction.
	current, err := s.credRepo.GetForUpdate(ctx, dbTx, req.PrincipalID)
	if err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("lock credential: %w", err))
	}
	if current == nil {
		return nil, s.reject(log, telemetry.OutcomeInvalidCurrent, apperror.ErrInvalidCurrentCredential())
	}

	ok, err := s.hashSvc.Verify(req.CurrentSecret, current.Hash)
	if err != nil {
		return nil, s.internalFailure(log, fmt.Errorf("verify current credential: %w", err))
	}
	if !ok {
		return nil, s.reject(log, telemetry.OutcomeInvalidCurrent, apperror.ErrInvalidCurrentCredential())
	}

	same, err := s.hashSvc.Verify(req.NewSecret, current.Hash)
	if err != nil {
		return nil, s.internalFailure(log, fmt.Errorf("compare with current credential: %w", err))
	}
	if same {
		return nil, s.reject(log, telemetry.OutcomeSameAsCurrent, apperror.ErrSameAsCurrent())
	}

	recent, err := s.historyRepo.ListRecent(ctx, dbTx, req.PrincipalID, s.historyLimit)
	if err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("load credential history: %w", err))
	}
	for _, entry := range recent {
		reused, err := s.hashSvc.Verify(req.NewSecret, entry.PriorHash)
		if err != nil {
			// An unreadable entry cannot match; it is still counted toward the bound.
			log.Warn().Err(err).Str("entry_id", entry.ID.String()).Msg("skipping unreadable credential history entry")
			continue
		}
		if reused {
			return nil, s.reject(log, telemetry.OutcomeRecentlyUsed, apperror.ErrRecentlyUsed(s.historyLimit))
		}
	}

	newHash, err := s.hashSvc.Hash(req.NewSecret)
	if err != nil {
		return nil, s.internalFailure(log, fmt.Errorf("derive new credential hash: %w", err))
	}

	changedAt := s.now().UTC().Truncate(time.Microsecond)
	entry := &domain.CredentialHistoryEntry{
		ID:          uuid.New(),
		PrincipalID: req.PrincipalID,
		PriorHash:   current.Hash,
		Reason:      reason,
		SourceIP:    req.Context.SourceIP,
		UserAgent:   req.Context.UserAgent,
		RecordedAt:  changedAt,
	}
	if err := s.historyRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("insert credential history: %w", err))
	}
	if err := s.credRepo.UpdateHash(ctx, dbTx, req.PrincipalID, newHash, changedAt); err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("update credential hash: %w", err))
	}
	trimmed, err := s.historyRepo.TrimExcess(ctx, dbTx, req.PrincipalID, s.historyLimit)
	if err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("trim credential history: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, s.storageFailure(log, fmt.Errorf("commit tx: %w", err))
	}

	telemetry.CredentialChangesTotal.WithLabelValues(telemetry.OutcomeChanged).Inc()
	telemetry.CredentialHistoryTrimmedTotal.Add(float64(trimmed))
	log.Info().
		Str("reason", string(reason)).
		Int64("history_trimmed", trimmed).
		Msg("credential changed")

	result := &domain.ChangeResult{
		PrincipalID: req.PrincipalID,
		ChangedAt:   changedAt,
	}

	event, err := s.auditSvc.Record(ctx, s.changedEvent(req.PrincipalID, reason, req.Context.Provenance))
	if err != nil {
		telemetry.CredentialAuditEmissionFailuresTotal.Inc()
		log.Error().Err(err).Msg("credential changed but audit event was not recorded")
		return result, apperror.ErrAuditEmission(err)
	}
	result.AuditEventID = &event.ID

	return result, nil
}

// History returns change metadata for the principal, newest first.
// Hashes are never part of the result.
func (s *CredentialServiceImpl) History(ctx context.Context, principalID uuid.UUID) ([]domain.CredentialChange, error) {
	entries, err := s.historyRepo.ListByPrincipal(ctx, principalID, s.historyLimit)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list credential history: %w", err))
	}

	changes := make([]domain.CredentialChange, 0, len(entries))
	for i := range entries {
		changes = append(changes, entries[i].Change())
	}
	return changes, nil
}

func (s *CredentialServiceImpl) changedEvent(principalID uuid.UUID, reason domain.ChangeReason, prov domain.Provenance) domain.AuditEventInput {
	severity := domain.SeverityInfo
	if reason == domain.ReasonAdminReset {
		severity = domain.SeverityWarning
	}
	op := domain.OperationUpdate
	actor := principalID
	entityID := principalID.String()
	entityName := domain.EntityPrincipal

	return domain.AuditEventInput{
		Category:   domain.CategorySecurity,
		Severity:   severity,
		ActorID:    &actor,
		Action:     domain.ActionCredentialChanged,
		Operation:  &op,
		EntityName: &entityName,
		EntityID:   &entityID,
		Detail:     "reason=" + string(reason),
		Provenance: prov,
	}
}

func (s *CredentialServiceImpl) reject(log zerolog.Logger, outcome string, err *apperror.AppError) error {
	telemetry.CredentialChangesTotal.WithLabelValues(outcome).Inc()
	log.Warn().Str("code", err.Code).Msg("credential change rejected")
	return err
}

func (s *CredentialServiceImpl) storageFailure(log zerolog.Logger, err error) error {
	telemetry.CredentialChangesTotal.WithLabelValues(telemetry.OutcomeStorageError).Inc()
	log.Error().Err(err).Msg("credential change failed in storage")
	return apperror.ErrStorage(err)
}

func (s *CredentialServiceImpl) internalFailure(log zerolog.Logger, err error) error {
	telemetry.CredentialChangesTotal.WithLabelValues(telemetry.OutcomeInternalError).Inc()
	log.Error().Err(err).Msg("credential change failed")
	return apperror.InternalError(err)
}
