package sync

import (
	"context"
	"sync"
	"time"

	"go-helpdesk/internal/cache"
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/features/profile"
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Manager hands out one reconciler session per viewer and shares the
// assignee-name resolver across them.
type Manager struct {
	store    store.Store
	cache    cache.TicketCache
	names    *profile.NameResolver
	profiles *profile.Service
	logger   *zap.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*refSession
}

type refSession struct {
	session *Session
	refs    int
}

func NewManager(lc fx.Lifecycle, cfg *config.Config, st store.Store, tc cache.TicketCache, profiles *profile.Service, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    st,
		cache:    tc,
		names:    profile.NewNameResolver(st),
		profiles: profiles,
		logger:   logger,
		opts: Options{
			PageSize:     cfg.PageSize,
			DisplayCount: cfg.DisplayCount,
			CacheTTL:     cfg.CacheTTL,
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*refSession{},
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Shutdown()
			return nil
		},
	})
	return m
}

// Acquire returns the viewer's session, starting one on first use. Each
// Acquire must be paired with a Release.
func (m *Manager) Acquire(actor ticket.Actor) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs, ok := m.sessions[actor.ID]; ok {
		rs.refs++
		return rs.session
	}
	s := newSession(m.ctx, actor, m.store, m.cache, m.names, m.profiles, m.logger, m.opts)
	m.sessions[actor.ID] = &refSession{session: s, refs: 1}
	return s
}

// Release drops one reference; the session and its subscriptions are torn
// down when the last consumer leaves.
func (m *Manager) Release(actorID string) {
	m.mu.Lock()
	rs, ok := m.sessions[actorID]
	if ok {
		rs.refs--
		if rs.refs <= 0 {
			delete(m.sessions, actorID)
		} else {
			rs = nil
		}
	}
	m.mu.Unlock()

	if ok && rs != nil {
		rs.session.Close()
	}
}

// Peek returns a live session without taking a reference, for write-path
// placeholder tracking.
func (m *Manager) Peek(actorID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.sessions[actorID]
	if !ok {
		return nil, false
	}
	return rs.session, true
}

// SweepPlaceholders asks every live session to drop stale placeholders.
func (m *Manager) SweepPlaceholders(maxAge time.Duration) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, rs := range m.sessions {
		sessions = append(sessions, rs.session)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.SweepPlaceholders(maxAge)
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, rs := range m.sessions {
		sessions = append(sessions, rs.session)
	}
	m.sessions = map[string]*refSession{}
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		s.Close()
	}
}

// Track, Confirm and Drop forward placeholder bookkeeping from the write
// path into the filer's session, when one is live. A viewer without an open
// feed simply gets the real document on their next load.

func (m *Manager) Track(actorID, tempID string, t ticket.Ticket) {
	if s, ok := m.Peek(actorID); ok {
		s.TrackPlaceholder(tempID, t)
	}
}

func (m *Manager) Confirm(actorID, tempID, realID string) {
	if s, ok := m.Peek(actorID); ok {
		s.ConfirmPlaceholder(tempID, realID)
	}
}

func (m *Manager) Drop(actorID, tempID string) {
	if s, ok := m.Peek(actorID); ok {
		s.DropPlaceholder(tempID)
	}
}
