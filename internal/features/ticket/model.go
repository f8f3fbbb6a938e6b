package ticket

import (
	"time"
)

// Status is the canonical lifecycle status. Closed and Completed are legacy
// terminal aliases kept for older records; treat them as Resolved-equivalent.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
	StatusCompleted  Status = "Completed"
)

// Final reports whether the status is terminal. Final tickets can still be
// reopened.
func (s Status) Final() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusCompleted:
		return true
	}
	return false
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusCompleted:
		return true
	}
	return false
}

// Priority represents the priority level of a ticket
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Role is the actor's role within the helpdesk.
type Role string

const (
	RoleSuperAdmin    Role = "SuperAdmin"
	RoleITEngineer    Role = "ITEngineer"
	RoleITTechSupport Role = "ITTechSupport"
	RoleITVisual      Role = "ITVisual"
	RoleUser          Role = "User"
)

// Staff reports whether the role belongs to IT staff rather than an end user.
func (r Role) Staff() bool {
	switch r {
	case RoleSuperAdmin, RoleITEngineer, RoleITTechSupport, RoleITVisual:
		return true
	}
	return false
}

// Actor is an authenticated identity performing transitions.
type Actor struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
}

// DisplayName is the identity recorded on audit entries.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// UpdateEntry is one append-only audit trail record. Prior entries are never
// mutated.
type UpdateEntry struct {
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
}

// Ticket is the canonical in-memory shape every component downstream of the
// normalizer works with. Raw store documents are mapped into it exactly once,
// at the read boundary.
type Ticket struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`

	Subject string `json:"subject"`
	Message string `json:"message,omitempty"`

	Status   Status   `json:"status"`
	QA       string   `json:"qa,omitempty"` // legacy mirror of final status, write-only
	Priority Priority `json:"priority"`

	OwnerUserID     string `json:"ownerUserId"`
	OwnerName       string `json:"ownerName,omitempty"`
	OwnerEmail      string `json:"ownerEmail,omitempty"`
	OwnerDepartment string `json:"ownerDepartment,omitempty"`

	Location  string `json:"location,omitempty"`
	Device    string `json:"device,omitempty"`
	Inventory string `json:"inventory,omitempty"`
	ActionBy  string `json:"actionBy,omitempty"`

	// AssigneeID is the canonical assignment. Legacy records that stored a
	// display name instead keep it in AssigneeName with AssigneeLegacy set,
	// so nothing downstream has to guess silently.
	AssigneeID     string `json:"assigneeId,omitempty"`
	AssigneeName   string `json:"assigneeName,omitempty"`
	AssigneeLegacy bool   `json:"assigneeLegacy,omitempty"`

	Note    string        `json:"note,omitempty"`
	Updates []UpdateEntry `json:"updates,omitempty"`

	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`

	Deleted      bool       `json:"deleted,omitempty"`
	Archived     bool       `json:"archived,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	DeletedBy    string     `json:"deletedBy,omitempty"`
	DeleteReason string     `json:"deleteReason,omitempty"`

	// RequestID is the creation idempotency key; a timed-out create retried
	// with the same key resolves to the already-written document.
	RequestID string `json:"requestId,omitempty"`
}

// Assigned reports whether the ticket has any assignment, canonical or legacy.
func (t *Ticket) Assigned() bool {
	return t.AssigneeID != "" || t.AssigneeName != ""
}

// Collection names at the store boundary.
const (
	Collection        = "tickets"
	ProfileCollection = "users"
)
