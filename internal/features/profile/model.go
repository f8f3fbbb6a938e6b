package profile

import (
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/store"
)

// Profile is an actor's directory record in the users collection. Ticket
// documents denormalize a copy of these fields at creation; the reconciler
// keeps them eventually consistent.
type Profile struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Department string      `json:"department"`
	Location   string      `json:"location"`
	Role       ticket.Role `json:"role"`
}

// FromDocument maps a raw users document; like the ticket normalizer it
// substitutes defaults instead of failing.
func FromDocument(doc store.Document) Profile {
	p := Profile{
		ID:         doc.ID(),
		Name:       doc.String("name"),
		Email:      doc.String("email"),
		Department: doc.String("department"),
		Location:   doc.String("location"),
		Role:       ticket.Role(doc.String("role")),
	}
	if p.Role == "" {
		p.Role = ticket.RoleUser
	}
	return p
}

// departmentLocations is the fixed department to default-location mapping
// profile corrections are checked against.
var departmentLocations = map[string]string{
	"IT":              "IT Server",
	"Human Resources": "Head Office",
	"HR":              "Head Office",
	"Finance":         "Head Office",
	"Accounting":      "Head Office",
	"Operations":      "Warehouse",
	"Marketing":       "Head Office",
	"Sales":           "Branch",
	"Procurement":     "Warehouse",
	"Administration":  "Head Office",
}

// ExpectedLocation returns the consistent location for a department, or ""
// when the department has no mapping (no correction is made).
func ExpectedLocation(department string) string {
	return departmentLocations[department]
}
