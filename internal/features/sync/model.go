package sync

import (
	"time"

	"go-helpdesk/internal/features/ticket"
)

// View is the read-only projection of a session's working collection handed
// to renderers. Tickets holds the full merged set; DisplayCount is how many
// of them the client currently renders.
type View struct {
	Tickets      []ticket.Ticket `json:"tickets"`
	DisplayCount int             `json:"displayCount"`
	FromCache    bool            `json:"fromCache"`
	HasMore      bool            `json:"hasMore"`
}

// Rendered returns the displayed slice of the merged collection.
func (v View) Rendered() []ticket.Ticket {
	if v.DisplayCount <= 0 || v.DisplayCount >= len(v.Tickets) {
		return v.Tickets
	}
	return v.Tickets[:v.DisplayCount]
}

// showAll makes DisplayCount track the whole collection.
const showAll = -1

// placeholder is a locally synthesized ticket shown before the store assigns
// a permanent id. The temp id lives in Ticket.ID until the authoritative
// record replaces it.
type placeholder struct {
	tempID    string
	ticket    ticket.Ticket
	createdAt time.Time
}
