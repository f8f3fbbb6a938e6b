package store

import (
	"context"
	"errors"
)

// Document is the raw record shape at the store boundary. Field names follow
// the wire contract (user_id, created_at, ...), not the canonical Go model.
type Document map[string]any

// ID returns the store-assigned identifier, if present.
func (d Document) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// String reads a string field, tolerating absent or mistyped values.
func (d Document) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Bool reads a boolean field.
func (d Document) Bool(key string) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return false
}

// ChangeType classifies a per-document change within a subscription event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// DocChange is a single-document diff delivered alongside a snapshot.
type DocChange struct {
	Type ChangeType
	ID   string
	Doc  Document
}

// Event is one subscription delivery: the full result set of the subscribed
// query after the change, plus the per-document diffs for this delivery.
// The initial delivery carries every document as ChangeAdded.
type Event struct {
	Snapshot []Document
	Changes  []DocChange
}

// Filter is a single equality-style constraint.
type Filter struct {
	Field string
	Op    string // "==" or "!="
	Value any
}

// Query describes a filtered, optionally ordered and bounded read.
// After is a cursor document: results start strictly after it in the
// query's order.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
	After      Document
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: "==", Value: value}
}

// Subscription is a cancelable stream of Events for one query. Events are
// delivered in the order the store emits them; the consumer must not assume
// any ordering across two independent subscriptions.
type Subscription interface {
	Events() <-chan Event
	Cancel()
}

// ErrOrderedSubscribe marks an ordered subscription the backing store could
// not serve (e.g. a missing composite index); callers retry without OrderBy
// and sort client-side.
var ErrOrderedSubscribe = errors.New("store: ordered subscription unavailable")

// Store is the remote document store collaborator. There is exactly one
// authoritative store; conflict resolution is last-write-wins per document.
type Store interface {
	Create(ctx context.Context, collection string, fields Document) (string, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	RunQuery(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}
