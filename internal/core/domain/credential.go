package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeReason records why a credential was replaced.
type ChangeReason string

const (
	ReasonUserRequested ChangeReason = "user_requested"
	ReasonAdminReset    ChangeReason = "admin_reset"
)

// Valid reports whether r is a known reason.
func (r ChangeReason) Valid() bool {
	return r == ReasonUserRequested || r == ReasonAdminReset
}

// CredentialRecord is the current credential of a principal.
type CredentialRecord struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Hash        string    `json:"-"` // Never expose
	UpdatedAt   time.Time `json:"updated_at"`
}

// CredentialHistoryEntry stores an outgoing credential hash.
type CredentialHistoryEntry struct {
	ID          uuid.UUID    `json:"id"`
	PrincipalID uuid.UUID    `json:"principal_id"`
	PriorHash   string       `json:"-"` // Never expose
	Reason      ChangeReason `json:"reason"`
	SourceIP    string       `json:"source_ip,omitempty"`
	UserAgent   string       `json:"user_agent,omitempty"`
	RecordedAt  time.Time    `json:"recorded_at"`
}

// Change returns the metadata view of the entry.
func (e *CredentialHistoryEntry) Change() CredentialChange {
	return CredentialChange{
		ID:         e.ID,
		Reason:     e.Reason,
		SourceIP:   e.SourceIP,
		UserAgent:  e.UserAgent,
		RecordedAt: e.RecordedAt,
	}
}

// CredentialChange is the public view of a history entry. It carries no hash.
type CredentialChange struct {
	ID         uuid.UUID    `json:"id"`
	Reason     ChangeReason `json:"reason"`
	SourceIP   string       `json:"source_ip,omitempty"`
	UserAgent  string       `json:"user_agent,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// ChangeContext carries request provenance for a credential change.
type ChangeContext struct {
	Provenance
	Reason ChangeReason
}

// ChangeResult describes a committed credential change.
type ChangeResult struct {
	PrincipalID  uuid.UUID  `json:"principal_id"`
	ChangedAt    time.Time  `json:"changed_at"`
	AuditEventID *uuid.UUID `json:"audit_event_id,omitempty"`
}
