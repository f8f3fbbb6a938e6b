package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and the seed command. It
// applies the same query semantics as the Mongo implementation and delivers
// subscription events synchronously on every mutation.
type MemoryStore struct {
	mu          sync.Mutex
	seq         int
	collections map[string]map[string]Document
	subscribers []*memorySubscription

	// FailOrdered makes ordered Subscribe calls fail, simulating a backing
	// store that lacks the required composite index.
	FailOrdered bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]Document{}}
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields Document) (string, error) {
	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("doc%06d", s.seq)
	doc := cloneDoc(fields)
	doc["id"] = id
	coll := s.collections[collection]
	if coll == nil {
		coll = map[string]Document{}
		s.collections[collection] = coll
	}
	coll[id] = doc
	subs := s.matchingSubs(collection)
	s.mu.Unlock()

	s.notify(subs, DocChange{Type: ChangeAdded, ID: id, Doc: cloneDoc(doc)})
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	coll := s.collections[collection]
	doc, ok := coll[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	subs := s.matchingSubs(collection)
	updated := cloneDoc(doc)
	s.mu.Unlock()

	s.notify(subs, DocChange{Type: ChangeModified, ID: id, Doc: updated})
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return cloneDoc(doc), true, nil
}

func (s *MemoryStore) RunQuery(ctx context.Context, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runQueryLocked(q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	if s.FailOrdered && q.OrderBy != "" {
		return nil, fmt.Errorf("%w: no composite index for %s", ErrOrderedSubscribe, q.OrderBy)
	}

	s.mu.Lock()
	sub := &memorySubscription{
		store:  s,
		query:  q,
		events: make(chan Event, 64),
	}
	initial := s.runQueryLocked(q)
	s.subscribers = append(s.subscribers, sub)
	changes := make([]DocChange, 0, len(initial))
	for _, doc := range initial {
		changes = append(changes, DocChange{Type: ChangeAdded, ID: doc.ID(), Doc: doc})
	}
	sub.deliverLocked(Event{Snapshot: initial, Changes: changes})
	s.mu.Unlock()
	return sub, nil
}

func (s *MemoryStore) matchingSubs(collection string) []*memorySubscription {
	var subs []*memorySubscription
	for _, sub := range s.subscribers {
		if !sub.canceled && sub.query.Collection == collection {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (s *MemoryStore) notify(subs []*memorySubscription, change DocChange) {
	for _, sub := range subs {
		s.mu.Lock()
		snapshot := s.runQueryLocked(sub.query)
		sub.deliverLocked(Event{Snapshot: snapshot, Changes: []DocChange{change}})
		s.mu.Unlock()
	}
}

func (s *MemoryStore) runQueryLocked(q Query) []Document {
	var docs []Document
	for _, doc := range s.collections[q.Collection] {
		if matches(doc, q.Filters) {
			docs = append(docs, cloneDoc(doc))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareValues(docs[i][q.OrderBy], docs[j][q.OrderBy]) < 0
			if q.Desc {
				return !less && compareValues(docs[i][q.OrderBy], docs[j][q.OrderBy]) != 0
			}
			return less
		})
	}
	if q.After != nil && q.OrderBy != "" {
		cut := q.After[q.OrderBy]
		filtered := docs[:0]
		for _, doc := range docs {
			cmp := compareValues(doc[q.OrderBy], cut)
			if (q.Desc && cmp < 0) || (!q.Desc && cmp > 0) {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

type memorySubscription struct {
	store    *MemoryStore
	query    Query
	events   chan Event
	canceled bool
	once     sync.Once
}

func (s *memorySubscription) Events() <-chan Event { return s.events }

func (s *memorySubscription) Cancel() {
	s.once.Do(func() {
		s.store.mu.Lock()
		s.canceled = true
		close(s.events)
		s.store.mu.Unlock()
	})
}

// deliverLocked sends an event to the subscriber. The store lock must be
// held: it serializes the send against Cancel closing the channel.
func (s *memorySubscription) deliverLocked(ev Event) {
	if s.canceled {
		return
	}
	select {
	case s.events <- ev:
	default:
		// Buffer full: drop the oldest pending event so the stream stays
		// current rather than blocking the mutator.
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		eq := equalValues(doc[f.Field], f.Value)
		if f.Op == "!=" {
			if eq {
				return false
			}
			continue
		}
		if !eq {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	return compareValues(a, b) == 0
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case bool:
		bv, _ := b.(bool)
		if av == bv {
			return 0
		}
		if av {
			return 1
		}
		return -1
	case int:
		return compareFloat(float64(av), b)
	case int64:
		return compareFloat(float64(av), b)
	case float64:
		return compareFloat(av, b)
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 1
		}
		if av.Before(bv) {
			return -1
		}
		if av.After(bv) {
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}

func compareFloat(av float64, b any) int {
	var bv float64
	switch n := b.(type) {
	case int:
		bv = float64(n)
	case int64:
		bv = float64(n)
	case float64:
		bv = n
	default:
		return 1
	}
	if av < bv {
		return -1
	}
	if av > bv {
		return 1
	}
	return 0
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if arr, ok := v.([]any); ok {
			copied := make([]any, len(arr))
			for i, item := range arr {
				if m, ok := item.(map[string]any); ok {
					inner := make(map[string]any, len(m))
					for mk, mv := range m {
						inner[mk] = mv
					}
					copied[i] = inner
				} else {
					copied[i] = item
				}
			}
			out[k] = copied
			continue
		}
		if m, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(m))
			for mk, mv := range m {
				inner[mk] = mv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
