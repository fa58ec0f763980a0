package handler

import (
	"audit-ledger/internal/adapter/http/dto"
	"audit-ledger/internal/adapter/http/middleware"
	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/apperror"
	"audit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CredentialHandler handles the caller's own credential endpoints.
type CredentialHandler struct {
	credSvc ports.CredentialService
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(credSvc ports.CredentialService) *CredentialHandler {
	return &CredentialHandler{credSvc: credSvc}
}

// Change handles PUT /api/v1/profile/credential.
// A change that committed without its audit event is still a 200, carrying
// an AUDIT_EMISSION_FAILED warning and audit_recorded=false.
func (h *CredentialHandler) Change(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChangeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.credSvc.ChangeCredential(c.Request.Context(), ports.ChangeCredentialRequest{
		PrincipalID:   principalID,
		CurrentSecret: req.CurrentSecret,
		NewSecret:     req.NewSecret,
		ConfirmSecret: req.ConfirmSecret,
		Context: domain.ChangeContext{
			Provenance: provenance(c),
			Reason:     domain.ReasonUserRequested,
		},
	})
	if result != nil {
		// CREDENTIAL_CHANGED is recorded by the service.
		middleware.MarkAudited(c)
	}

	if result != nil && apperror.IsKind(err, apperror.KindAuditEmission) {
		appErr, _ := apperror.As(err)
		response.OKWithWarning(c, changeResponse(result), appErr)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, changeResponse(result))
}

// History handles GET /api/v1/profile/credential/history.
func (h *CredentialHandler) History(c *gin.Context) {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	changes, err := h.credSvc.History(c.Request.Context(), principalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CredentialHistoryResponse{Items: changes, Count: len(changes)})
}

func changeResponse(r *domain.ChangeResult) dto.ChangeCredentialResponse {
	resp := dto.ChangeCredentialResponse{
		PrincipalID:   r.PrincipalID.String(),
		ChangedAt:     r.ChangedAt,
		AuditRecorded: r.AuditEventID != nil,
	}
	if r.AuditEventID != nil {
		id := r.AuditEventID.String()
		resp.AuditEventID = &id
	}
	return resp
}
