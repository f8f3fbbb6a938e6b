package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go-helpdesk/internal/cache"
	"go-helpdesk/internal/features/profile"
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/store"

	"go.uber.org/zap"
)

// Options tunes a session.
type Options struct {
	PageSize     int
	DisplayCount int
	CacheTTL     time.Duration
}

// Session owns the in-memory ticket collection for one viewer and keeps it
// consistent against the TTL cache, the live ticket subscription and the
// profile subscription. All collection state is owned by the run goroutine;
// external calls are funneled through the command channel, so there is never
// parallel mutation of the working set.
type Session struct {
	actor    ticket.Actor
	store    store.Store
	cache    cache.TicketCache
	names    *profile.NameResolver
	profiles *profile.Service
	logger   *zap.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	commands chan func()

	// Loop-owned state. Never touched off the run goroutine.
	live         []ticket.Ticket
	cursor       store.Document // last raw document of the last fetched page
	paged        []ticket.Ticket
	placeholders []placeholder
	tempToReal   map[string]string
	displayCount int
	clientSort   bool // ordered subscription unavailable, sort locally
	fromCache    bool
	windowFull   bool // last live window filled the page, more may exist
	exhausted    bool // a fetch came back short, older records are all loaded

	ticketSub  store.Subscription
	profileSub store.Subscription

	mu       sync.RWMutex
	view     View
	watchers map[chan View]struct{}
}

func newSession(parent context.Context, actor ticket.Actor, st store.Store, tc cache.TicketCache, names *profile.NameResolver, profiles *profile.Service, logger *zap.Logger, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		actor:        actor,
		store:        st,
		cache:        tc,
		names:        names,
		profiles:     profiles,
		logger:       logger.With(zap.String("viewer", actor.ID)),
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		commands:     make(chan func(), 16),
		tempToReal:   map[string]string{},
		displayCount: opts.DisplayCount,
		watchers:     map[chan View]struct{}{},
	}
	go s.run()
	return s
}

// Close cancels both subscriptions and stops the loop.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Snapshot returns a copy of the current view.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Watch registers a view consumer. The channel holds only the latest view;
// slow consumers see coalesced updates, never stale ones.
func (s *Session) Watch() chan View {
	ch := make(chan View, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.view
	s.mu.Unlock()
	return ch
}

func (s *Session) Unwatch(ch chan View) {
	s.mu.Lock()
	delete(s.watchers, ch)
	s.mu.Unlock()
}

// LoadMore fetches the next page after the current cursor and merges it into
// the working collection.
func (s *Session) LoadMore(ctx context.Context) error {
	errCh := make(chan error, 1)
	if !s.do(func() { errCh <- s.loadMore() }) {
		return context.Canceled
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShowAll grows the rendered slice to the whole merged collection.
func (s *Session) ShowAll() {
	s.do(func() {
		s.displayCount = showAll
		s.publish()
	})
}

// ResetDisplay shrinks the rendered slice back to the default without
// refetching; the fetched tail stays merged.
func (s *Session) ResetDisplay() {
	s.do(func() {
		s.displayCount = s.opts.DisplayCount
		s.publish()
	})
}

// TrackPlaceholder inserts a locally synthesized ticket under a temporary id
// until the authoritative record arrives.
func (s *Session) TrackPlaceholder(tempID string, t ticket.Ticket) {
	t.ID = tempID
	now := time.Now()
	s.do(func() {
		s.placeholders = append(s.placeholders, placeholder{tempID: tempID, ticket: t, createdAt: now})
		s.publish()
	})
}

// ConfirmPlaceholder records the temp-id to real-id mapping. The placeholder
// is dropped as soon as the authoritative record is in the collection;
// matching is by this mapping, never by content comparison.
func (s *Session) ConfirmPlaceholder(tempID, realID string) {
	s.do(func() {
		s.tempToReal[tempID] = realID
		s.publish()
	})
}

// DropPlaceholder removes a placeholder whose write failed or timed out.
func (s *Session) DropPlaceholder(tempID string) {
	s.do(func() {
		s.removePlaceholder(tempID)
		s.publish()
	})
}

// SweepPlaceholders drops unconfirmed placeholders older than maxAge.
func (s *Session) SweepPlaceholders(maxAge time.Duration) {
	s.do(func() {
		kept := s.placeholders[:0]
		for _, p := range s.placeholders {
			if _, confirmed := s.tempToReal[p.tempID]; confirmed || time.Since(p.createdAt) < maxAge {
				kept = append(kept, p)
				continue
			}
			s.logger.Warn("dropping stale placeholder", zap.String("tempId", p.tempID))
		}
		if len(kept) != len(s.placeholders) {
			s.placeholders = kept
			s.publish()
		}
	})
}

// do schedules fn on the loop goroutine.
func (s *Session) do(fn func()) bool {
	select {
	case s.commands <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer func() {
		s.cancelSub(&s.ticketSub)
		s.cancelSub(&s.profileSub)
	}()

	// Cache-first start: render immediately from an unexpired cache entry
	// and defer the live subscription until the freshness window elapses.
	// Bounded staleness in exchange for fewer reads.
	var deferTimer *time.Timer
	var deferCh <-chan time.Time
	if entry, ok := s.cache.Read(s.ctx, s.actor.ID); ok {
		s.live = entry.Tickets
		s.fromCache = true
		s.publish()
		remaining := s.opts.CacheTTL - time.Since(entry.CapturedAt())
		if remaining > 0 {
			deferTimer = time.NewTimer(remaining)
			deferCh = deferTimer.C
		} else {
			s.openTicketSub()
		}
	} else {
		s.openTicketSub()
	}
	if deferTimer != nil {
		defer deferTimer.Stop()
	}

	s.openProfileSub()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-deferCh:
			deferCh = nil
			s.openTicketSub()

		case ev, ok := <-s.ticketEvents():
			if !ok {
				s.ticketSub = nil
				continue
			}
			s.onTicketEvent(ev)

		case ev, ok := <-s.profileEvents():
			if !ok {
				s.profileSub = nil
				continue
			}
			s.onProfileEvent(ev)

		case cmd := <-s.commands:
			cmd()
		}
	}
}

// ticketEvents returns nil (blocking forever in select) when no subscription
// is open, e.g. during the deferred-start window.
func (s *Session) ticketEvents() <-chan store.Event {
	if s.ticketSub == nil {
		return nil
	}
	return s.ticketSub.Events()
}

func (s *Session) profileEvents() <-chan store.Event {
	if s.profileSub == nil {
		return nil
	}
	return s.profileSub.Events()
}

func (s *Session) ticketQuery() store.Query {
	q := store.Query{
		Collection: ticket.Collection,
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      s.opts.PageSize,
	}
	// End users only see their own tickets; staff watch the whole queue.
	if !s.actor.Role.Staff() {
		q.Filters = append(q.Filters, store.Eq("user_id", s.actor.ID))
	}
	return q
}

// openTicketSub (re)opens the live window. Any previous subscription on this
// channel is canceled first: a leaked subscription keeps delivering late
// reconciliation events.
func (s *Session) openTicketSub() {
	s.cancelSub(&s.ticketSub)

	q := s.ticketQuery()
	sub, err := s.store.Subscribe(s.ctx, q)
	if errors.Is(err, store.ErrOrderedSubscribe) {
		// Backing store cannot serve the ordered window; take the same
		// filter unordered and sort client-side. Consumers see no
		// difference.
		s.clientSort = true
		q.OrderBy = ""
		q.Desc = false
		sub, err = s.store.Subscribe(s.ctx, q)
	}
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("ticket subscription failed", zap.Error(err))
		}
		return
	}
	s.ticketSub = sub
}

func (s *Session) openProfileSub() {
	s.cancelSub(&s.profileSub)
	sub, err := s.store.Subscribe(s.ctx, store.Query{Collection: ticket.ProfileCollection})
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("profile subscription failed", zap.Error(err))
		}
		return
	}
	s.profileSub = sub
}

func (s *Session) cancelSub(sub *store.Subscription) {
	if *sub != nil {
		(*sub).Cancel()
		*sub = nil
	}
}

// onTicketEvent replaces the live window from a full snapshot: normalize,
// drop soft-deleted and archived records, resolve assignee names, order by
// creation time descending, then persist a copy to the TTL cache.
func (s *Session) onTicketEvent(ev store.Event) {
	docs := ev.Snapshot
	sortDocsByCreatedDesc(docs)
	s.windowFull = s.opts.PageSize > 0 && len(docs) >= s.opts.PageSize

	live := make([]ticket.Ticket, 0, len(docs))
	windowIDs := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		windowIDs[doc.ID()] = struct{}{}
		t := ticket.Normalize(doc)
		if t.Deleted || t.Archived {
			continue
		}
		s.resolveAssigneeName(&t)
		live = append(live, t)
	}

	// A newer arrival shifts the window and pushes its oldest member out.
	// Evicted tickets move to the head of the paged tail so the collection
	// keeps them until a refetch covers that range. Cached windows are not
	// authoritative, so no eviction there.
	if !s.fromCache {
		var evicted []ticket.Ticket
		for _, old := range s.live {
			if _, still := windowIDs[old.ID]; still {
				continue
			}
			if s.pagedContains(old.ID) {
				continue
			}
			evicted = append(evicted, old)
		}
		if len(evicted) > 0 {
			s.paged = append(evicted, s.paged...)
		}
	}

	s.live = live
	s.fromCache = false

	// Until a page has been fetched the cursor tracks the last document of
	// the current window; a stale cursor here would skip records evicted
	// between snapshots.
	if len(s.paged) == 0 && len(docs) > 0 {
		s.cursor = docs[len(docs)-1]
	}

	s.publish()
	s.cache.Write(s.ctx, s.actor.ID, s.merged())
}

// onProfileEvent reflects actor-profile edits into loaded tickets: correct
// the department/location mapping opportunistically and reload the primary
// collection so denormalized owner fields catch up. A coarse full reload is
// deliberate; profile edits are rare relative to ticket edits.
func (s *Session) onProfileEvent(ev store.Event) {
	reload := false
	for _, change := range ev.Changes {
		if change.Type != store.ChangeModified || change.Doc == nil {
			continue
		}
		p := profile.FromDocument(change.Doc)
		s.names.Invalidate(p.ID)
		s.profiles.CorrectLocation(s.ctx, p)
		reload = true
	}
	if reload {
		s.openTicketSub()
	}
}

func (s *Session) resolveAssigneeName(t *ticket.Ticket) {
	if t.AssigneeName == "" && t.AssigneeID != "" {
		t.AssigneeName = s.names.DisplayName(s.ctx, t.AssigneeID)
	}
}

// loadMore issues a one-shot query for the next page, strictly after the
// last-seen document, and merges it with id-based de-duplication. It runs on
// the loop goroutine.
func (s *Session) loadMore() error {
	q := s.ticketQuery()
	q.After = s.cursor
	if s.clientSort {
		// The unordered fallback cannot cursor. Refetch with a limit that
		// covers everything already merged plus one more page, sort locally
		// and let de-duplication keep only the new tail.
		q.OrderBy = ""
		q.Desc = false
		q.After = nil
		q.Limit = len(s.live) + len(s.paged) + s.opts.PageSize
	}

	docs, err := s.store.RunQuery(s.ctx, q)
	if err != nil {
		return err
	}
	sortDocsByCreatedDesc(docs)
	if s.clientSort {
		s.exhausted = len(docs) < q.Limit
	} else {
		s.exhausted = len(docs) < s.opts.PageSize
		if len(docs) > 0 {
			s.cursor = docs[len(docs)-1]
		}
	}

	grown := 0
	for _, doc := range docs {
		t := ticket.Normalize(doc)
		if t.Deleted || t.Archived {
			continue
		}
		s.resolveAssigneeName(&t)
		if s.containsID(t.ID) {
			continue
		}
		s.paged = append(s.paged, t)
		grown++
	}
	if s.displayCount != showAll {
		s.displayCount += grown
	}
	s.publish()
	return nil
}

func (s *Session) containsID(id string) bool {
	for i := range s.live {
		if s.live[i].ID == id {
			return true
		}
	}
	return s.pagedContains(id)
}

func (s *Session) pagedContains(id string) bool {
	for i := range s.paged {
		if s.paged[i].ID == id {
			return true
		}
	}
	return false
}

// merged builds the working collection: live window first, then the paged
// tail, then unreplaced placeholders. The result never holds two entries
// with the same final id, and never a placeholder whose authoritative
// counterpart has arrived.
func (s *Session) merged() []ticket.Ticket {
	seen := make(map[string]struct{}, len(s.live)+len(s.paged))
	out := make([]ticket.Ticket, 0, len(s.live)+len(s.paged)+len(s.placeholders))
	for _, t := range s.live {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	for _, t := range s.paged {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}

	kept := s.placeholders[:0]
	for _, p := range s.placeholders {
		if realID, confirmed := s.tempToReal[p.tempID]; confirmed {
			if _, arrived := seen[realID]; arrived {
				delete(s.tempToReal, p.tempID)
				continue
			}
		}
		kept = append(kept, p)
		out = append(out, p.ticket)
	}
	s.placeholders = kept
	return out
}

func (s *Session) removePlaceholder(tempID string) {
	kept := s.placeholders[:0]
	for _, p := range s.placeholders {
		if p.tempID != tempID {
			kept = append(kept, p)
		}
	}
	s.placeholders = kept
	delete(s.tempToReal, tempID)
}

// publish copies the merged collection into the shared view and fans it out
// to watchers. Consumers only ever see these copies.
func (s *Session) publish() {
	merged := s.merged()
	tickets := make([]ticket.Ticket, len(merged))
	copy(tickets, merged)

	display := s.displayCount
	if display == showAll {
		display = len(tickets)
	}
	view := View{
		Tickets:      tickets,
		DisplayCount: display,
		FromCache:    s.fromCache,
		HasMore:      s.windowFull && !s.exhausted,
	}

	s.mu.Lock()
	s.view = view
	for ch := range s.watchers {
		select {
		case ch <- view:
		default:
			// Replace the pending view with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
	s.mu.Unlock()
}

func sortDocsByCreatedDesc(docs []store.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docCreatedAt(docs[i]).After(docCreatedAt(docs[j]))
	})
}

func docCreatedAt(doc store.Document) time.Time {
	return ticket.Normalize(doc).CreatedAt
}
