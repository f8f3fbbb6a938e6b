package ticket

import (
	"strings"
	"time"

	"go-helpdesk/internal/common/errs"
	"go-helpdesk/internal/store"
)

// Action is a lifecycle transition request.
type Action string

const (
	ActionTake        Action = "take"
	ActionStart       Action = "start"
	ActionResolve     Action = "resolve"
	ActionReopen      Action = "reopen"
	ActionDelete      Action = "delete"
	ActionOwnerDelete Action = "ownerDelete"
)

// minResolutionNote is the shortest resolution note accepted on resolve.
const minResolutionNote = 10

// TransitionParams carries per-action input.
type TransitionParams struct {
	// Note is the resolution note; required (>= 10 chars) for resolve.
	Note string
	// FinalStatus is the explicit terminal state chosen on resolve.
	FinalStatus Status
	// Reason is captured on an owner-side delete.
	Reason string
}

// Transition validates and applies one lifecycle action. It is pure: the
// input ticket is not mutated. On success it returns the updated ticket and
// the wire-shaped field mutations to persist; a failed guard returns
// PermissionDenied and a missing required field returns ValidationFailed,
// in both cases with no partial mutation.
func Transition(t Ticket, actor Actor, action Action, p TransitionParams, now time.Time) (Ticket, store.Document, error) {
	switch action {
	case ActionTake:
		return take(t, actor, now)
	case ActionStart:
		return start(t, actor, now)
	case ActionResolve:
		return resolve(t, actor, p, now)
	case ActionReopen:
		return reopen(t, actor, now)
	case ActionDelete:
		return softDelete(t, actor, "", now)
	case ActionOwnerDelete:
		return ownerDelete(t, actor, p.Reason, now)
	}
	return t, nil, errs.NewValidationFailed("unknown action", map[string]any{"action": string(action)})
}

func take(t Ticket, actor Actor, now time.Time) (Ticket, store.Document, error) {
	if !CanTake(&t, actor) {
		return t, nil, errs.NewPermissionDenied("take")
	}
	t.AssigneeID = actor.ID
	t.AssigneeName = actor.DisplayName()
	t.AssigneeLegacy = false
	t.ActionBy = actor.DisplayName()
	return finish(t, actor, StatusInProgress, "", now, store.Document{
		"assigned_to":   t.AssigneeID,
		"assigned_name": t.AssigneeName,
		"action_by":     t.ActionBy,
	})
}

func start(t Ticket, actor Actor, now time.Time) (Ticket, store.Document, error) {
	if !CanStart(&t, actor) {
		return t, nil, errs.NewPermissionDenied("start")
	}
	t.ActionBy = actor.DisplayName()
	return finish(t, actor, StatusInProgress, "", now, store.Document{
		"action_by": t.ActionBy,
	})
}

func resolve(t Ticket, actor Actor, p TransitionParams, now time.Time) (Ticket, store.Document, error) {
	if !CanResolve(&t, actor) {
		return t, nil, errs.NewPermissionDenied("resolve")
	}
	note := strings.TrimSpace(p.Note)
	if len(note) < minResolutionNote {
		return t, nil, errs.NewValidationFailed("resolution note must be at least 10 characters", map[string]any{
			"field": "note",
		})
	}
	if !p.FinalStatus.Final() {
		return t, nil, errs.NewValidationFailed("resolve requires an explicit final status", map[string]any{
			"field": "finalStatus",
		})
	}
	t.Note = note
	t.QA = string(p.FinalStatus) // legacy mirror, kept for older report consumers
	return finish(t, actor, p.FinalStatus, note, now, store.Document{
		"note": t.Note,
		"qa":   t.QA,
	})
}

func reopen(t Ticket, actor Actor, now time.Time) (Ticket, store.Document, error) {
	if !CanReopen(&t, actor) {
		return t, nil, errs.NewPermissionDenied("reopen")
	}
	return finish(t, actor, StatusOpen, "", now, store.Document{})
}

func softDelete(t Ticket, actor Actor, reason string, now time.Time) (Ticket, store.Document, error) {
	if !CanDelete(&t, actor) {
		return t, nil, errs.NewPermissionDenied("delete")
	}
	return markDeleted(t, actor, reason, now)
}

func ownerDelete(t Ticket, actor Actor, reason string, now time.Time) (Ticket, store.Document, error) {
	if !CanOwnerDelete(&t, actor) {
		return t, nil, errs.NewPermissionDenied("ownerDelete")
	}
	return markDeleted(t, actor, reason, now)
}

func markDeleted(t Ticket, actor Actor, reason string, now time.Time) (Ticket, store.Document, error) {
	t.Deleted = true
	deletedAt := now
	t.DeletedAt = &deletedAt
	t.DeletedBy = actor.DisplayName()
	t.DeleteReason = reason

	mutations := store.Document{
		"deleted":       true,
		"deleted_at":    deletedAt,
		"deleted_by":    t.DeletedBy,
		"delete_reason": t.DeleteReason,
	}
	return appendAudit(t, actor, t.Status, "deleted: "+reason, now, mutations, false)
}

// editableFields are the non-lifecycle fields an edit may touch.
var editableFields = map[string]bool{
	"subject":   true,
	"message":   true,
	"priority":  true,
	"location":  true,
	"device":    true,
	"inventory": true,
	"status":    true,
}

// Edit applies non-lifecycle field changes. A status change is only accepted
// here when it moves between final flavors (Resolved/Closed/Completed);
// anything else must go through a transition. Edits that keep a final ticket
// final do not advance lastUpdatedAt.
func Edit(t Ticket, actor Actor, fields store.Document, now time.Time) (Ticket, store.Document, error) {
	if !(actor.Role.Staff() || IsOwner(&t, actor)) {
		return t, nil, errs.NewPermissionDenied("edit")
	}
	wasFinal := t.Status.Final()

	mutations := store.Document{}
	for key, value := range fields {
		if !editableFields[key] {
			return t, nil, errs.NewValidationFailed("field is not editable", map[string]any{"field": key})
		}
		switch key {
		case "subject":
			t.Subject, _ = value.(string)
		case "message":
			t.Message, _ = value.(string)
		case "priority":
			raw, _ := value.(string)
			t.Priority = normalizePriority(raw)
			value = string(t.Priority)
		case "location":
			t.Location, _ = value.(string)
		case "device":
			t.Device, _ = value.(string)
		case "inventory":
			t.Inventory, _ = value.(string)
		case "status":
			raw, _ := value.(string)
			next, ok := parseStatus(raw)
			if !ok || !wasFinal || !next.Final() {
				return t, nil, errs.NewValidationFailed("status can only be edited between final states", map[string]any{
					"field": "status",
				})
			}
			t.Status = next
			t.QA = string(next)
			mutations["qa"] = t.QA
			value = string(next)
		}
		mutations[key] = value
	}

	if !(wasFinal && t.Status.Final()) {
		t.LastUpdatedAt = now
		mutations["last_updated"] = now
	}
	return t, mutations, nil
}

// finish applies the status change, the audit entry and the timestamp rule
// shared by every non-delete transition.
func finish(t Ticket, actor Actor, next Status, notes string, now time.Time, mutations store.Document) (Ticket, store.Document, error) {
	wasFinal := t.Status.Final()
	t.Status = next
	mutations["status"] = string(next)

	// A ticket moving between final statuses keeps its lastUpdatedAt so the
	// externally computed resolution duration survives cosmetic edits.
	advance := !(wasFinal && next.Final())
	return appendAudit(t, actor, next, notes, now, mutations, advance)
}

func appendAudit(t Ticket, actor Actor, status Status, notes string, now time.Time, mutations store.Document, advance bool) (Ticket, store.Document, error) {
	entry := UpdateEntry{
		Status:    status,
		Notes:     notes,
		Timestamp: now,
		UpdatedBy: actor.DisplayName(),
	}
	t.Updates = append(append([]UpdateEntry(nil), t.Updates...), entry)
	mutations["updates"] = updatesToWire(t.Updates)

	if advance {
		t.LastUpdatedAt = now
		mutations["last_updated"] = now
	}
	return t, mutations, nil
}
