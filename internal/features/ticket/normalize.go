package ticket

import (
	"regexp"
	"strings"
	"time"

	"go-helpdesk/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize maps a raw stored record into the canonical Ticket shape. It is
// pure and total: malformed input never raises, it gets documented defaults
// so the collection can always render something.
func Normalize(doc store.Document) Ticket {
	t := Ticket{
		ID:              doc.ID(),
		Code:            doc.String("code"),
		Subject:         doc.String("subject"),
		Message:         doc.String("message"),
		QA:              doc.String("qa"),
		OwnerUserID:     doc.String("user_id"),
		OwnerName:       doc.String("user_name"),
		OwnerEmail:      doc.String("user_email"),
		OwnerDepartment: doc.String("user_department"),
		Location:        doc.String("location"),
		Device:          doc.String("device"),
		Inventory:       doc.String("inventory"),
		ActionBy:        doc.String("action_by"),
		Note:            doc.String("note"),
		Deleted:         doc.Bool("deleted"),
		Archived:        doc.Bool("archived"),
		DeletedBy:       doc.String("deleted_by"),
		DeleteReason:    doc.String("delete_reason"),
		RequestID:       doc.String("request_id"),
	}

	t.Status = normalizeStatus(doc.String("status"), t.QA)
	t.Priority = normalizePriority(doc.String("priority"))
	t.AssigneeID, t.AssigneeName, t.AssigneeLegacy = normalizeAssignee(doc["assigned_to"], doc.String("assigned_name"))

	t.CreatedAt = normalizeTime(doc["created_at"])
	t.LastUpdatedAt = normalizeTime(doc["last_updated"])
	if t.LastUpdatedAt.IsZero() {
		t.LastUpdatedAt = t.CreatedAt
	}
	if at := normalizeTime(doc["deleted_at"]); !at.IsZero() {
		t.DeletedAt = &at
	}

	t.Updates = normalizeUpdates(doc["updates"])
	return t
}

// ToDocument renders the canonical ticket back into wire-shaped fields.
// Field names here are a compatibility contract with existing records.
func ToDocument(t Ticket) store.Document {
	doc := store.Document{
		"code":            t.Code,
		"subject":         t.Subject,
		"message":         t.Message,
		"priority":        string(t.Priority),
		"status":          string(t.Status),
		"qa":              t.QA,
		"user_id":         t.OwnerUserID,
		"user_name":       t.OwnerName,
		"user_email":      t.OwnerEmail,
		"user_department": t.OwnerDepartment,
		"location":        t.Location,
		"device":          t.Device,
		"inventory":       t.Inventory,
		"action_by":       t.ActionBy,
		"assigned_to":     t.AssigneeID,
		"assigned_name":   t.AssigneeName,
		"note":            t.Note,
		"updates":         updatesToWire(t.Updates),
		"created_at":      t.CreatedAt,
		"last_updated":    t.LastUpdatedAt,
		"deleted":         t.Deleted,
		"archived":        t.Archived,
		"deleted_by":      t.DeletedBy,
		"delete_reason":   t.DeleteReason,
		"request_id":      t.RequestID,
	}
	if t.DeletedAt != nil {
		doc["deleted_at"] = *t.DeletedAt
	}
	return doc
}

func updatesToWire(updates []UpdateEntry) []any {
	wire := make([]any, len(updates))
	for i, u := range updates {
		wire[i] = map[string]any{
			"status":    string(u.Status),
			"notes":     u.Notes,
			"timestamp": u.Timestamp,
			"updatedBy": u.UpdatedBy,
		}
	}
	return wire
}

// normalizeStatus folds the legacy qa mirror and older spellings into one
// canonical tagged status. Nothing downstream branches on both fields.
func normalizeStatus(status, qa string) Status {
	if s, ok := parseStatus(status); ok {
		return s
	}
	if s, ok := parseStatus(qa); ok {
		return s
	}
	return StatusOpen
}

func parseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "new", "pending":
		return StatusOpen, true
	case "inprogress", "in progress", "in_progress", "in-progress":
		return StatusInProgress, true
	case "resolved":
		return StatusResolved, true
	case "closed":
		return StatusClosed, true
	case "completed", "complete", "done":
		return StatusCompleted, true
	}
	return "", false
}

func normalizePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent", "critical":
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}

var emailInBrackets = regexp.MustCompile(`<([^<>]+@[^<>]+)>`)

// normalizeAssignee extracts the canonical assignee id. Legacy records stored
// a display name or a composite "Name <email>" string in assigned_to; those
// are kept as a flagged degraded-compatibility shape instead of guessed ids.
func normalizeAssignee(assignedTo any, assignedName string) (id, name string, legacy bool) {
	raw, _ := assignedTo.(string)
	raw = strings.TrimSpace(raw)
	name = strings.TrimSpace(assignedName)

	if raw == "" {
		return "", name, name != ""
	}
	if looksLikeID(raw) {
		return raw, name, false
	}
	// Composite legacy shape: "Jane Doe <jane@example.com>"
	if m := emailInBrackets.FindStringSubmatch(raw); m != nil {
		display := strings.TrimSpace(strings.Split(raw, "<")[0])
		if display == "" {
			display = m[1]
		}
		return "", display, true
	}
	if name == "" {
		name = raw
	}
	return "", name, true
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// looksLikeID accepts store-assigned identifiers: 24-char hex object ids and
// other space-free opaque tokens carrying at least one digit. Bare display
// names ("Jane") fail both checks and take the legacy path.
func looksLikeID(raw string) bool {
	if _, err := primitive.ObjectIDFromHex(raw); err == nil {
		return true
	}
	return idPattern.MatchString(raw) && strings.ContainsAny(raw, "0123456789")
}

func normalizeTime(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case primitive.DateTime:
		return ts.Time()
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return parsed
		}
	case int64:
		return time.UnixMilli(ts)
	case float64:
		return time.UnixMilli(int64(ts))
	}
	return time.Time{}
}

func normalizeUpdates(v any) []UpdateEntry {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	updates := make([]UpdateEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := UpdateEntry{
			Timestamp: normalizeTime(m["timestamp"]),
			UpdatedBy: stringField(m, "updatedBy"),
		}
		entry.Notes = stringField(m, "notes")
		if s, ok := parseStatus(stringField(m, "status")); ok {
			entry.Status = s
		} else {
			entry.Status = StatusOpen
		}
		updates = append(updates, entry)
	}
	return updates
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
