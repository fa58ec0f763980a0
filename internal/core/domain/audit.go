package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies an audit event.
type EventCategory string

const (
	CategoryAccess   EventCategory = "ACCESS"
	CategoryChange   EventCategory = "CHANGE"
	CategoryError    EventCategory = "ERROR"
	CategorySecurity EventCategory = "SECURITY"
)

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	switch c {
	case CategoryAccess, CategoryChange, CategoryError, CategorySecurity:
		return true
	}
	return false
}

// Severity of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Operation is the data operation an event describes, if any.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
	OperationRead   Operation = "READ"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead:
		return true
	}
	return false
}

// Well-known actions recorded by this service.
const (
	ActionCredentialChanged = "CREDENTIAL_CHANGED"
	ActionLogin             = "LOGIN"
	ActionLoginFailed       = "LOGIN_FAILED"
)

// ReservedAction reports whether action is written only by this service's own
// flows and must not be accepted from external callers.
func ReservedAction(action string) bool {
	for _, reserved := range []string{ActionCredentialChanged, ActionLogin, ActionLoginFailed} {
		if strings.EqualFold(strings.TrimSpace(action), reserved) {
			return true
		}
	}
	return false
}

// EntityPrincipal is the entity name used for events about a principal.
const EntityPrincipal = "Principal"

// AuditEvent is an immutable record of something that happened.
// Seq is assigned by storage and breaks ties between equal OccurredAt values.
type AuditEvent struct {
	ID             uuid.UUID       `json:"id"`
	Seq            int64           `json:"-"`
	Category       EventCategory   `json:"category"`
	Severity       Severity        `json:"severity"`
	ActorID        *uuid.UUID      `json:"actor_id,omitempty"`
	Action         string          `json:"action"`
	Operation      *Operation      `json:"operation,omitempty"`
	EntityName     *string         `json:"entity_name,omitempty"`
	EntityID       *string         `json:"entity_id,omitempty"`
	TenantScope    *string         `json:"tenant_scope,omitempty"`
	ChangeSnapshot json.RawMessage `json:"change_snapshot,omitempty"`
	Detail         string          `json:"detail,omitempty"`
	SourceIP       string          `json:"source_ip,omitempty"`
	UserAgent      string          `json:"user_agent,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Provenance describes where a request came from.
type Provenance struct {
	SourceIP  string
	UserAgent string
}

// AuditEventInput is the caller-supplied part of an event.
// ID and OccurredAt are always assigned by the store.
// When Snapshot is nil and Before or After is set, a snapshot with the
// computed field delta is built from them.
type AuditEventInput struct {
	Category    EventCategory
	Severity    Severity
	ActorID     *uuid.UUID
	Action      string
	Operation   *Operation
	EntityName  *string
	EntityID    *string
	TenantScope *string
	Snapshot    json.RawMessage
	Before      map[string]any
	After       map[string]any
	Detail      string
	Provenance
}

// AuditFilter narrows an audit query. All set fields must match.
type AuditFilter struct {
	ActorID     *uuid.UUID
	EntityName  *string
	EntityID    *string
	TenantScope *string
	Category    *EventCategory
	Severity    *Severity
	Operation   *Operation
	SourceIP    *string
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
}

// AuditPage is one page of query results.
type AuditPage struct {
	Items      []AuditEvent `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// EntityCount pairs an entity name with its access count.
type EntityCount struct {
	EntityName string `json:"entity_name"`
	Count      int64  `json:"count"`
}

// AuditStatistics summarises the event store.
type AuditStatistics struct {
	Total             int64                   `json:"total"`
	ByCategory        map[EventCategory]int64 `json:"by_category"`
	BySeverity        map[Severity]int64      `json:"by_severity"`
	ByOperation       map[Operation]int64     `json:"by_operation"`
	AccessToday       int64                   `json:"access_today"`
	ErrorsToday       int64                   `json:"errors_today"`
	ActiveActorsToday int64                   `json:"active_actors_today"`
	TopEntities       []EntityCount           `json:"top_entities"`
}

// FieldChange is one entry of a snapshot's changed set.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

type changeSnapshot struct {
	Before  map[string]any         `json:"before"`
	After   map[string]any         `json:"after"`
	Changed map[string]FieldChange `json:"changed"`
}

// BuildChangeSnapshot encodes before/after state together with the set of
// fields whose values differ. Changed is null when nothing differs.
func BuildChangeSnapshot(before, after map[string]any) (json.RawMessage, error) {
	snap := changeSnapshot{Before: before, After: after}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		same, err := jsonEqual(before[k], after[k])
		if err != nil {
			return nil, fmt.Errorf("compare field %q: %w", k, err)
		}
		if same {
			continue
		}
		if snap.Changed == nil {
			snap.Changed = make(map[string]FieldChange)
		}
		snap.Changed[k] = FieldChange{From: before[k], To: after[k]}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return raw, nil
}

func jsonEqual(a, b any) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
