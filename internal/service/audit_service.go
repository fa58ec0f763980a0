package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/internal/telemetry"
	"audit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditConfig bounds audit trail reads.
type AuditConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ActorLimit      int
	TopEntities     int
	Location        *time.Location
}

// DefaultAuditConfig returns the built-in read bounds.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		DefaultPageSize: 20,
		MaxPageSize:     200,
		ActorLimit:      50,
		TopEntities:     10,
		Location:        time.UTC,
	}
}

// AuditServiceImpl implements ports.AuditService on top of an append-only
// event repository.
type AuditServiceImpl struct {
	repo ports.AuditEventRepository
	cfg  AuditConfig
	now  func() time.Time
	log  zerolog.Logger
}

// NewAuditService creates a new AuditServiceImpl.
func NewAuditService(repo ports.AuditEventRepository, cfg AuditConfig, log zerolog.Logger) *AuditServiceImpl {
	def := DefaultAuditConfig()
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = min(def.DefaultPageSize, cfg.MaxPageSize)
	}
	if cfg.ActorLimit <= 0 {
		cfg.ActorLimit = def.ActorLimit
	}
	if cfg.TopEntities <= 0 {
		cfg.TopEntities = def.TopEntities
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	return &AuditServiceImpl{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
		log:  log,
	}
}

// WithClock replaces the time source used to stamp events and to find "today".
func (s *AuditServiceImpl) WithClock(now func() time.Time) *AuditServiceImpl {
	s.now = now
	return s
}

// Record validates and persists one event. ID and OccurredAt are always
// assigned here. Storage errors are returned as retryable STORAGE_UNAVAILABLE.
func (s *AuditServiceImpl) Record(ctx context.Context, in domain.AuditEventInput) (*domain.AuditEvent, error) {
	if !in.Category.Valid() {
		return nil, apperror.Validation("category must be one of ACCESS, CHANGE, ERROR, SECURITY")
	}
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return nil, apperror.Validation("action is required")
	}
	severity := in.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}
	if !severity.Valid() {
		return nil, apperror.Validation("severity must be one of INFO, WARNING, CRITICAL")
	}
	if in.Operation != nil && !in.Operation.Valid() {
		return nil, apperror.Validation("operation must be one of CREATE, UPDATE, DELETE, READ")
	}

	snapshot := in.Snapshot
	if snapshot == nil && (in.Before != nil || in.After != nil) {
		var err error
		snapshot, err = domain.BuildChangeSnapshot(in.Before, in.After)
		if err != nil {
			return nil, apperror.Validation("change snapshot is not encodable")
		}
	}
	if len(snapshot) > 0 && !json.Valid(snapshot) {
		return nil, apperror.Validation("change snapshot must be valid JSON")
	}

	event := &domain.AuditEvent{
		ID:             uuid.New(),
		Category:       in.Category,
		Severity:       severity,
		ActorID:        in.ActorID,
		Action:         action,
		Operation:      in.Operation,
		EntityName:     in.EntityName,
		EntityID:       in.EntityID,
		TenantScope:    in.TenantScope,
		ChangeSnapshot: snapshot,
		Detail:         in.Detail,
		SourceIP:       in.SourceIP,
		UserAgent:      in.UserAgent,
		OccurredAt:     s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		telemetry.AuditRecordFailuresTotal.WithLabelValues(string(event.Category)).Inc()
		s.log.Error().Err(err).
			Str("category", string(event.Category)).
			Str("action", event.Action).
			Msg("failed to persist audit event")
		return nil, apperror.ErrStorage(fmt.Errorf("insert audit event: %w", err))
	}

	telemetry.AuditEventsRecordedTotal.WithLabelValues(string(event.Category), string(event.Severity)).Inc()
	s.log.Debug().
		Str("event_id", event.ID.String()).
		Str("category", string(event.Category)).
		Str("action", event.Action).
		Msg("audit event recorded")

	return event, nil
}

// RecordAccess records a READ access to an entity.
func (s *AuditServiceImpl) RecordAccess(ctx context.Context, actorID *uuid.UUID, action, entityName, detail string, prov domain.Provenance) (*domain.AuditEvent, error) {
	op := domain.OperationRead
	return s.Record(ctx, domain.AuditEventInput{
		Category:   domain.CategoryAccess,
		Severity:   domain.SeverityInfo,
		ActorID:    actorID,
		Action:     action,
		Operation:  &op,
		EntityName: optional(entityName),
		Detail:     detail,
		Provenance: prov,
	})
}

// RecordChange records a data change with a before/after snapshot.
// The action is derived from the operation and entity, e.g. UPDATE_PROFILE.
func (s *AuditServiceImpl) RecordChange(ctx context.Context, req ports.RecordChangeRequest) (*domain.AuditEvent, error) {
	if strings.TrimSpace(req.EntityName) == "" {
		return nil, apperror.Validation("entity name is required")
	}
	op := req.Operation
	return s.Record(ctx, domain.AuditEventInput{
		Category:    domain.CategoryChange,
		Severity:    domain.SeverityInfo,
		ActorID:     req.ActorID,
		Action:      changeAction(op, req.EntityName),
		Operation:   &op,
		EntityName:  optional(req.EntityName),
		EntityID:    optional(req.EntityID),
		TenantScope: req.TenantScope,
		Before:      req.Before,
		After:       req.After,
		Provenance:  req.Provenance,
	})
}

// RecordError records a failure. Severity defaults to WARNING.
func (s *AuditServiceImpl) RecordError(ctx context.Context, actorID *uuid.UUID, action, detail string, severity domain.Severity, prov domain.Provenance) (*domain.AuditEvent, error) {
	if severity == "" {
		severity = domain.SeverityWarning
	}
	return s.Record(ctx, domain.AuditEventInput{
		Category:   domain.CategoryError,
		Severity:   severity,
		ActorID:    actorID,
		Action:     action,
		Detail:     detail,
		Provenance: prov,
	})
}

// RecordLoginAttempt records a login. Failed attempts carry no actor, since
// the login may not belong to any principal.
func (s *AuditServiceImpl) RecordLoginAttempt(ctx context.Context, login string, success bool, actorID *uuid.UUID, prov domain.Provenance) (*domain.AuditEvent, error) {
	in := domain.AuditEventInput{
		Category:   domain.CategoryAccess,
		Provenance: prov,
	}
	if success {
		in.Severity = domain.SeverityInfo
		in.Action = domain.ActionLogin
		in.ActorID = actorID
		in.EntityName = optional(domain.EntityPrincipal)
		if actorID != nil {
			in.EntityID = optional(actorID.String())
		}
		in.Detail = fmt.Sprintf("login succeeded for %q", login)
	} else {
		in.Severity = domain.SeverityWarning
		in.Action = domain.ActionLoginFailed
		in.Detail = fmt.Sprintf("login failed for %q", login)
	}
	return s.Record(ctx, in)
}

// Query returns one page of events matching filter, newest first.
// page is 1-indexed. pageSize <= 0 uses the default; larger than the
// maximum is clamped.
func (s *AuditServiceImpl) Query(ctx context.Context, filter domain.AuditFilter, page, pageSize int) (*domain.AuditPage, error) {
	if page < 1 {
		return nil, apperror.Validation("page must be at least 1")
	}
	pageSize = s.pageSize(pageSize)

	if filter.EntityID != nil && filter.EntityName == nil {
		return nil, apperror.Validation("entity_id requires entity_name")
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, apperror.Validation("unknown category")
	}
	if filter.Severity != nil && !filter.Severity.Valid() {
		return nil, apperror.Validation("unknown severity")
	}
	if filter.Operation != nil && !filter.Operation.Valid() {
		return nil, apperror.Validation("unknown operation")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, apperror.Validation("date_from must not be after date_to")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	defer observe("query", time.Now())

	items, total, err := s.repo.List(ctx, ports.AuditListParams{
		Filter:   filter,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list audit events: %w", err))
	}
	if items == nil {
		items = []domain.AuditEvent{}
	}

	return &domain.AuditPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// ByActor returns the actor's most recent events, newest first. A non-nil
// tenantScope restricts the result to that tenant before the limit applies.
func (s *AuditServiceImpl) ByActor(ctx context.Context, actorID uuid.UUID, tenantScope *string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = s.cfg.ActorLimit
	}
	limit = min(limit, s.cfg.MaxPageSize)

	defer observe("by_actor", time.Now())

	events, err := s.repo.ListByActor(ctx, actorID, tenantScope, limit)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list audit events by actor: %w", err))
	}
	return nonNil(events), nil
}

// ByEntity returns the full history of one resource, newest first.
func (s *AuditServiceImpl) ByEntity(ctx context.Context, entityName, entityID string, tenantScope *string) ([]domain.AuditEvent, error) {
	if strings.TrimSpace(entityName) == "" || strings.TrimSpace(entityID) == "" {
		return nil, apperror.Validation("entity name and entity id are required")
	}

	defer observe("by_entity", time.Now())

	events, err := s.repo.ListByEntity(ctx, entityName, entityID, tenantScope)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list audit events by entity: %w", err))
	}
	return nonNil(events), nil
}

// Statistics aggregates the event store. "Today" is the current calendar day
// in scope.Location, or the configured zone when unset.
func (s *AuditServiceImpl) Statistics(ctx context.Context, scope ports.StatisticsScope) (*domain.AuditStatistics, error) {
	loc := scope.Location
	if loc == nil {
		loc = s.cfg.Location
	}
	dayStart, dayEnd := dayBounds(s.now(), loc)

	defer observe("statistics", time.Now())

	stats, err := s.repo.Statistics(ctx, ports.AuditStatsParams{
		TenantScope: scope.TenantScope,
		DayStart:    dayStart,
		DayEnd:      dayEnd,
		TopN:        s.cfg.TopEntities,
	})
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("compute audit statistics: %w", err))
	}

	if stats.ByCategory == nil {
		stats.ByCategory = map[domain.EventCategory]int64{}
	}
	if stats.BySeverity == nil {
		stats.BySeverity = map[domain.Severity]int64{}
	}
	if stats.ByOperation == nil {
		stats.ByOperation = map[domain.Operation]int64{}
	}
	if stats.TopEntities == nil {
		stats.TopEntities = []domain.EntityCount{}
	}
	return stats, nil
}

func (s *AuditServiceImpl) pageSize(requested int) int {
	if requested <= 0 {
		return s.cfg.DefaultPageSize
	}
	return min(requested, s.cfg.MaxPageSize)
}

// dayBounds returns [start, end) of the calendar day containing now in loc, in UTC.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

func changeAction(op domain.Operation, entityName string) string {
	name := strings.ToUpper(strings.Join(strings.Fields(entityName), "_"))
	return string(op) + "_" + name
}

func observe(operation string, start time.Time) {
	telemetry.AuditQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(events []domain.AuditEvent) []domain.AuditEvent {
	if events == nil {
		return []domain.AuditEvent{}
	}
	return events
}
