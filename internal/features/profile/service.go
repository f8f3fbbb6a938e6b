package profile

import (
	"context"
	"sync"

	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/store"

	"go.uber.org/zap"
)

// Service reads actor profiles from the store and applies
// department/location consistency corrections.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Get fetches one profile by actor id.
func (s *Service) Get(ctx context.Context, actorID string) (Profile, bool, error) {
	doc, found, err := s.store.Get(ctx, ticket.ProfileCollection, actorID)
	if err != nil || !found {
		return Profile{}, false, err
	}
	return FromDocument(doc), true, nil
}

// CorrectLocation writes back the department-consistent location when the
// stored one disagrees. The write is opportunistic: a failure is logged and
// dropped, the next profile event retries it.
func (s *Service) CorrectLocation(ctx context.Context, p Profile) {
	expected := ExpectedLocation(p.Department)
	if expected == "" || p.Location == expected {
		return
	}
	err := s.store.Update(ctx, ticket.ProfileCollection, p.ID, store.Document{"location": expected})
	if err != nil {
		s.logger.Warn("profile location correction failed",
			zap.String("profileId", p.ID), zap.Error(err))
		return
	}
	s.logger.Info("corrected profile location",
		zap.String("profileId", p.ID),
		zap.String("from", p.Location),
		zap.String("to", expected))
}

// NameResolver memoizes assignee display names per actor id. It is an
// explicit cache object owned by the reconciler and passed by reference;
// population is lazy per id and nothing is ever evicted.
type NameResolver struct {
	store store.Store

	mu    sync.Mutex
	names map[string]string
}

func NewNameResolver(st store.Store) *NameResolver {
	return &NameResolver{store: st, names: map[string]string{}}
}

// DisplayName resolves an actor id to a display name, hitting the store at
// most once per id. Unresolvable ids fall back to the id itself.
func (r *NameResolver) DisplayName(ctx context.Context, actorID string) string {
	if actorID == "" {
		return ""
	}
	r.mu.Lock()
	if name, ok := r.names[actorID]; ok {
		r.mu.Unlock()
		return name
	}
	r.mu.Unlock()

	name := actorID
	if doc, found, err := r.store.Get(ctx, ticket.ProfileCollection, actorID); err == nil && found {
		if n := doc.String("name"); n != "" {
			name = n
		}
	}

	r.mu.Lock()
	r.names[actorID] = name
	r.mu.Unlock()
	return name
}

// Invalidate drops a memoized name so the next lookup re-reads the store.
// The reconciler calls it when a profile document changes.
func (r *NameResolver) Invalidate(actorID string) {
	r.mu.Lock()
	delete(r.names, actorID)
	r.mu.Unlock()
}
