package ticket

import "strings"

// Permission decisions are pure functions of (ticket, actor). The same rule
// set gates both the action buttons shown to a user and the execution path,
// so UI and enforcement cannot drift. The lifecycle re-checks them at
// execution time against stale UI state.

// IsAssignee matches by canonical id first, with a legacy fallback to the
// stored display name or embedded email for records that predate id-based
// assignment.
func IsAssignee(t *Ticket, actor Actor) bool {
	if t.AssigneeID != "" {
		return t.AssigneeID == actor.ID
	}
	if !t.AssigneeLegacy || t.AssigneeName == "" {
		return false
	}
	if actor.Name != "" && strings.EqualFold(t.AssigneeName, actor.Name) {
		return true
	}
	return actor.Email != "" && strings.Contains(strings.ToLower(t.AssigneeName), strings.ToLower(actor.Email))
}

// IsOwner matches the filer by id.
func IsOwner(t *Ticket, actor Actor) bool {
	return t.OwnerUserID != "" && t.OwnerUserID == actor.ID
}

// CanTake: any staff actor may claim an unassigned ticket.
func CanTake(t *Ticket, actor Actor) bool {
	return actor.Role.Staff() && !t.Assigned() && !t.Deleted
}

// CanStart: an Open ticket may be started by a SuperAdmin, by anyone while
// it is unassigned, or by its assignee.
func CanStart(t *Ticket, actor Actor) bool {
	if t.Status != StatusOpen || t.Deleted {
		return false
	}
	return actor.Role == RoleSuperAdmin || !t.Assigned() || IsAssignee(t, actor)
}

// CanResolve: only a SuperAdmin or the assignee may resolve an in-progress
// ticket.
func CanResolve(t *Ticket, actor Actor) bool {
	if t.Status != StatusInProgress || t.Deleted {
		return false
	}
	return actor.Role == RoleSuperAdmin || IsAssignee(t, actor)
}

// CanReopen: a final ticket may be reopened by a SuperAdmin or the assignee.
func CanReopen(t *Ticket, actor Actor) bool {
	if !t.Status.Final() || t.Deleted {
		return false
	}
	return actor.Role == RoleSuperAdmin || IsAssignee(t, actor)
}

// CanDelete is the staff-side soft delete.
func CanDelete(t *Ticket, actor Actor) bool {
	if t.Deleted {
		return false
	}
	return actor.Role == RoleSuperAdmin || IsAssignee(t, actor)
}

// CanOwnerDelete is the filer-side soft delete, only while the ticket is
// still Open.
func CanOwnerDelete(t *Ticket, actor Actor) bool {
	return IsOwner(t, actor) && t.Status == StatusOpen && !t.Deleted
}

// Allowed returns the actions the actor may currently perform, for gating
// UI affordances.
func Allowed(t *Ticket, actor Actor) []Action {
	checks := []struct {
		action Action
		ok     bool
	}{
		{ActionTake, CanTake(t, actor)},
		{ActionStart, CanStart(t, actor)},
		{ActionResolve, CanResolve(t, actor)},
		{ActionReopen, CanReopen(t, actor)},
		{ActionDelete, CanDelete(t, actor)},
		{ActionOwnerDelete, CanOwnerDelete(t, actor)},
	}
	var actions []Action
	for _, c := range checks {
		if c.ok {
			actions = append(actions, c.action)
		}
	}
	return actions
}
