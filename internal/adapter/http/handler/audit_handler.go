package handler

import (
	"time"

	"audit-ledger/internal/adapter/http/dto"
	"audit-ledger/internal/adapter/http/middleware"
	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/apperror"
	"audit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler handles audit trail endpoints.
type AuditHandler struct {
	auditSvc ports.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditSvc ports.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// Record handles POST /api/v1/audit/events.
func (h *AuditHandler) Record(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)

	if req.ActorID != nil {
		id, err := uuid.Parse(*req.ActorID)
		if err != nil || id != principalID {
			response.Error(c, apperror.Validation("actor_id must be the authenticated principal"))
			return
		}
	}
	if domain.ReservedAction(req.Action) {
		response.Error(c, apperror.Validation("action "+req.Action+" is reserved"))
		return
	}

	in := domain.AuditEventInput{
		Category:    domain.EventCategory(req.Category),
		Severity:    domain.Severity(req.Severity),
		ActorID:     &principalID,
		Action:      req.Action,
		EntityName:  req.EntityName,
		EntityID:    req.EntityID,
		TenantScope: middleware.TenantScope(c),
		Snapshot:    req.ChangeSnapshot,
		Before:      req.Before,
		After:       req.After,
		Detail:      req.Detail,
		Provenance:  provenance(c),
	}
	if req.Operation != "" {
		op := domain.Operation(req.Operation)
		in.Operation = &op
	}

	event, err := h.auditSvc.Record(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkAudited(c)
	response.Created(c, event)
}

// RecordAccess handles POST /api/v1/audit/access.
func (h *AuditHandler) RecordAccess(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RecordAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)
	if domain.ReservedAction(req.Action) {
		response.Error(c, apperror.Validation("action "+req.Action+" is reserved"))
		return
	}

	event, err := h.auditSvc.RecordAccess(c.Request.Context(), &principalID, req.Action, req.EntityName, req.Detail, provenance(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkAudited(c)
	response.Created(c, event)
}

// RecordError handles POST /api/v1/audit/errors.
func (h *AuditHandler) RecordError(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RecordErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)
	if domain.ReservedAction(req.Action) {
		response.Error(c, apperror.Validation("action "+req.Action+" is reserved"))
		return
	}

	event, err := h.auditSvc.RecordError(c.Request.Context(), &principalID, req.Action, req.Detail,
		domain.Severity(req.Severity), provenance(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkAudited(c)
	response.Created(c, event)
}

// RecordChange handles POST /api/v1/audit/changes.
func (h *AuditHandler) RecordChange(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RecordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)

	event, err := h.auditSvc.RecordChange(c.Request.Context(), ports.RecordChangeRequest{
		ActorID:     &principalID,
		EntityName:  req.EntityName,
		EntityID:    req.EntityID,
		Operation:   domain.Operation(req.Operation),
		TenantScope: middleware.TenantScope(c),
		Before:      req.Before,
		After:       req.After,
		Provenance:  provenance(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkAudited(c)
	response.Created(c, event)
}

// Query handles GET /api/v1/audit/events.
func (h *AuditHandler) Query(c *gin.Context) {
	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&q)

	filter := domain.AuditFilter{
		TenantScope: middleware.TenantScope(c),
		Search:      q.Search,
	}
	if q.ActorID != "" {
		id, err := uuid.Parse(q.ActorID)
		if err != nil {
			response.Error(c, apperror.Validation("actor_id must be a UUID"))
			return
		}
		filter.ActorID = &id
	}
	if q.EntityName != "" {
		filter.EntityName = &q.EntityName
	}
	if q.EntityID != "" {
		filter.EntityID = &q.EntityID
	}
	if q.Category != "" {
		cat := domain.EventCategory(q.Category)
		filter.Category = &cat
	}
	if q.Severity != "" {
		sev := domain.Severity(q.Severity)
		filter.Severity = &sev
	}
	if q.Operation != "" {
		op := domain.Operation(q.Operation)
		filter.Operation = &op
	}
	if q.SourceIP != "" {
		filter.SourceIP = &q.SourceIP
	}
	var err error
	if filter.DateFrom, err = parseTime(q.From, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo, err = parseTime(q.To, "to"); err != nil {
		response.Error(c, err)
		return
	}

	page := q.Page
	if page == 0 {
		page = 1
	}

	result, err := h.auditSvc.Query(c.Request.Context(), filter, page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ByActor handles GET /api/v1/audit/actors/:actorId.
func (h *AuditHandler) ByActor(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("actorId"))
	if err != nil {
		response.Error(c, apperror.Validation("actor id must be a UUID"))
		return
	}
	var q dto.ActorQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	events, err := h.auditSvc.ByActor(c.Request.Context(), actorID, middleware.TenantScope(c), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AuditEventListResponse{Items: events, Count: len(events)})
}

// ByEntity handles GET /api/v1/audit/entities/:entityName/:entityId.
func (h *AuditHandler) ByEntity(c *gin.Context) {
	events, err := h.auditSvc.ByEntity(c.Request.Context(), c.Param("entityName"), c.Param("entityId"), middleware.TenantScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AuditEventListResponse{Items: events, Count: len(events)})
}

// Statistics handles GET /api/v1/audit/statistics.
func (h *AuditHandler) Statistics(c *gin.Context) {
	var q dto.StatisticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	scope := ports.StatisticsScope{TenantScope: middleware.TenantScope(c)}
	if q.TZ != "" {
		loc, err := time.LoadLocation(q.TZ)
		if err != nil {
			response.Error(c, apperror.Validation("tz must be an IANA time zone"))
			return
		}
		scope.Location = loc
	}

	stats, err := h.auditSvc.Statistics(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func parseTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(field + " must be an RFC3339 timestamp")
	}
	return &t, nil
}

func provenance(c *gin.Context) domain.Provenance {
	return domain.Provenance{SourceIP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
