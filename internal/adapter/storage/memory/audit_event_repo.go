package memory

import (
	"context"
	"sort"
	"strings"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// AuditEventRepo implements ports.AuditEventRepository in memory.
type AuditEventRepo struct {
	store *Store
}

// NewAuditEventRepo creates a new AuditEventRepo.
func NewAuditEventRepo(store *Store) *AuditEventRepo {
	return &AuditEventRepo{store: store}
}

// Insert appends a copy of the event and assigns its sequence number.
func (r *AuditEventRepo) Insert(_ context.Context, e *domain.AuditEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.lastSeq++
	e.Seq = r.store.lastSeq
	r.store.events = append(r.store.events, cloneEvent(*e))
	return nil
}

// List returns one page of matching events, newest first.
func (r *AuditEventRepo) List(_ context.Context, params ports.AuditListParams) ([]domain.AuditEvent, int64, error) {
	matched := r.selectEvents(func(e *domain.AuditEvent) bool { return matches(e, params.Filter) })

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(matched) {
		return []domain.AuditEvent{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// ListByActor returns up to limit of the actor's events, newest first.
func (r *AuditEventRepo) ListByActor(_ context.Context, actorID uuid.UUID, tenantScope *string, limit int) ([]domain.AuditEvent, error) {
	f := domain.AuditFilter{ActorID: &actorID, TenantScope: tenantScope}
	matched := r.selectEvents(func(e *domain.AuditEvent) bool {
		return matches(e, f)
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListByEntity returns every event for one resource, newest first.
func (r *AuditEventRepo) ListByEntity(_ context.Context, entityName, entityID string, tenantScope *string) ([]domain.AuditEvent, error) {
	f := domain.AuditFilter{EntityName: &entityName, EntityID: &entityID, TenantScope: tenantScope}
	return r.selectEvents(func(e *domain.AuditEvent) bool {
		return matches(e, f)
	}), nil
}

// Statistics computes all aggregates under one read lock.
func (r *AuditEventRepo) Statistics(_ context.Context, params ports.AuditStatsParams) (*domain.AuditStatistics, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := &domain.AuditStatistics{
		ByCategory:  make(map[domain.EventCategory]int64),
		BySeverity:  make(map[domain.Severity]int64),
		ByOperation: make(map[domain.Operation]int64),
		TopEntities: []domain.EntityCount{},
	}
	actorsToday := make(map[uuid.UUID]struct{})
	entityHits := make(map[string]int64)

	for i := range r.store.events {
		e := &r.store.events[i]
		if params.TenantScope != nil && (e.TenantScope == nil || *e.TenantScope != *params.TenantScope) {
			continue
		}

		stats.Total++
		stats.ByCategory[e.Category]++
		stats.BySeverity[e.Severity]++
		if e.Operation != nil {
			stats.ByOperation[*e.Operation]++
		}

		today := !e.OccurredAt.Before(params.DayStart) && e.OccurredAt.Before(params.DayEnd)
		switch e.Category {
		case domain.CategoryAccess:
			if e.EntityName != nil {
				entityHits[*e.EntityName]++
			}
			if today {
				stats.AccessToday++
				if e.ActorID != nil {
					actorsToday[*e.ActorID] = struct{}{}
				}
			}
		case domain.CategoryError:
			if today {
				stats.ErrorsToday++
			}
		}
	}
	stats.ActiveActorsToday = int64(len(actorsToday))

	for name, n := range entityHits {
		stats.TopEntities = append(stats.TopEntities, domain.EntityCount{EntityName: name, Count: n})
	}
	sort.Slice(stats.TopEntities, func(i, j int) bool {
		a, b := stats.TopEntities[i], stats.TopEntities[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.EntityName < b.EntityName
	})
	if len(stats.TopEntities) > params.TopN {
		stats.TopEntities = stats.TopEntities[:max(params.TopN, 0)]
	}

	return stats, nil
}

// selectEvents copies matching events and sorts them by occurred_at DESC, seq DESC.
func (r *AuditEventRepo) selectEvents(keep func(e *domain.AuditEvent) bool) []domain.AuditEvent {
	r.store.mu.RLock()
	out := []domain.AuditEvent{}
	for i := range r.store.events {
		if keep(&r.store.events[i]) {
			out = append(out, cloneEvent(r.store.events[i]))
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

func matches(e *domain.AuditEvent, f domain.AuditFilter) bool {
	if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
		return false
	}
	if f.EntityName != nil && (e.EntityName == nil || *e.EntityName != *f.EntityName) {
		return false
	}
	if f.EntityID != nil && (e.EntityID == nil || *e.EntityID != *f.EntityID) {
		return false
	}
	if f.TenantScope != nil && (e.TenantScope == nil || *e.TenantScope != *f.TenantScope) {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Severity != nil && e.Severity != *f.Severity {
		return false
	}
	if f.Operation != nil && (e.Operation == nil || *e.Operation != *f.Operation) {
		return false
	}
	if f.SourceIP != nil && e.SourceIP != *f.SourceIP {
		return false
	}
	if f.DateFrom != nil && e.OccurredAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.OccurredAt.After(*f.DateTo) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Action), needle) &&
			!strings.Contains(strings.ToLower(e.Detail), needle) {
			return false
		}
	}
	return true
}
