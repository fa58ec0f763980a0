package dto

import (
	"encoding/json"
	"time"

	"audit-ledger/internal/core/domain"
)

// --- Audit trail ---

// RecordEventRequest is the body of POST /audit/events. The actor is always
// the caller: an actor_id naming anyone else is rejected. Provenance and
// tenant scope come from the request.
type RecordEventRequest struct {
	Category       string          `json:"category" binding:"required,oneof=ACCESS CHANGE ERROR SECURITY"`
	Severity       string          `json:"severity" binding:"omitempty,oneof=INFO WARNING CRITICAL"`
	ActorID        *string         `json:"actor_id" binding:"omitempty,uuid"`
	Action         string          `json:"action" binding:"required,max=100,action_name"`
	Operation      string          `json:"operation" binding:"omitempty,oneof=CREATE UPDATE DELETE READ"`
	EntityName     *string         `json:"entity_name" binding:"omitempty,max=100,safe_id"`
	EntityID       *string         `json:"entity_id" binding:"omitempty,max=255"`
	Before         map[string]any  `json:"before"`
	After          map[string]any  `json:"after"`
	ChangeSnapshot json.RawMessage `json:"change_snapshot"`
	Detail         string          `json:"detail" binding:"max=4000" sanitize:"-"`
}

// RecordAccessRequest is the body of POST /audit/access.
type RecordAccessRequest struct {
	Action     string `json:"action" binding:"required,max=100,action_name"`
	EntityName string `json:"entity_name" binding:"omitempty,max=100,safe_id"`
	Detail     string `json:"detail" binding:"max=4000" sanitize:"-"`
}

// RecordErrorRequest is the body of POST /audit/errors.
type RecordErrorRequest struct {
	Action   string `json:"action" binding:"required,max=100,action_name"`
	Severity string `json:"severity" binding:"omitempty,oneof=INFO WARNING CRITICAL"`
	Detail   string `json:"detail" binding:"max=4000" sanitize:"-"`
}

// RecordChangeRequest is the body of POST /audit/changes. The action is
// derived from operation and entity, e.g. UPDATE_INVOICE.
type RecordChangeRequest struct {
	EntityName string         `json:"entity_name" binding:"required,max=100,safe_id"`
	EntityID   string         `json:"entity_id" binding:"omitempty,max=255"`
	Operation  string         `json:"operation" binding:"required,oneof=CREATE UPDATE DELETE"`
	Before     map[string]any `json:"before"`
	After      map[string]any `json:"after"`
}

// AuditQuery is the query string of GET /audit/events.
type AuditQuery struct {
	ActorID    string `form:"actor_id" binding:"omitempty,uuid"`
	EntityName string `form:"entity_name" binding:"omitempty,max=100,safe_id"`
	EntityID   string `form:"entity_id" binding:"omitempty,max=255"`
	Category   string `form:"category" binding:"omitempty,oneof=ACCESS CHANGE ERROR SECURITY"`
	Severity   string `form:"severity" binding:"omitempty,oneof=INFO WARNING CRITICAL"`
	Operation  string `form:"operation" binding:"omitempty,oneof=CREATE UPDATE DELETE READ"`
	SourceIP   string `form:"source_ip" binding:"omitempty,ip"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Search     string `form:"q" binding:"max=200" sanitize:"-"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1"`
}

// ActorQuery is the query string of GET /audit/actors/:actorId.
type ActorQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// StatisticsQuery is the query string of GET /audit/statistics.
type StatisticsQuery struct {
	TZ string `form:"tz" binding:"omitempty,max=64"`
}

// AuditEventListResponse wraps events returned without paging.
type AuditEventListResponse struct {
	Items []domain.AuditEvent `json:"items"`
	Count int                 `json:"count"`
}

// --- Credentials ---

// ChangeCredentialRequest is the body of PUT /profile/credential.
// Secrets are compared byte for byte and are never trimmed.
type ChangeCredentialRequest struct {
	CurrentSecret string `json:"current_secret" binding:"required" sanitize:"-"`
	NewSecret     string `json:"new_secret" sanitize:"-"`
	ConfirmSecret string `json:"confirm_secret" sanitize:"-"`
}

// ChangeCredentialResponse reports a committed change.
type ChangeCredentialResponse struct {
	PrincipalID   string    `json:"principal_id"`
	ChangedAt     time.Time `json:"changed_at"`
	AuditEventID  *string   `json:"audit_event_id,omitempty"`
	AuditRecorded bool      `json:"audit_recorded"`
}

// CredentialHistoryResponse lists change metadata, newest first.
type CredentialHistoryResponse struct {
	Items []domain.CredentialChange `json:"items"`
	Count int                       `json:"count"`
}

// --- Health ---

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}
