package sync

import (
	"context"
	"testing"
	"time"

	"go-helpdesk/internal/cache"
	"go-helpdesk/internal/features/profile"
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	staffViewer = ticket.Actor{ID: "staff-1", Role: ticket.RoleITEngineer, Name: "Evan Engineer"}
	userViewer  = ticket.Actor{ID: "user-1", Role: ticket.RoleUser, Name: "Uma User"}
)

func testOptions() Options {
	return Options{PageSize: 2, DisplayCount: 5, CacheTTL: time.Minute}
}

func startSession(t *testing.T, st *store.MemoryStore, tc cache.TicketCache, actor ticket.Actor, opts Options) *Session {
	t.Helper()
	logger := zap.NewNop()
	s := newSession(context.Background(), actor, st, tc,
		profile.NewNameResolver(st), profile.NewService(st, logger), logger, opts)
	t.Cleanup(s.Close)
	return s
}

func seedTicket(t *testing.T, st *store.MemoryStore, ownerID, subject string, createdAt time.Time) string {
	t.Helper()
	id, err := st.Create(context.Background(), ticket.Collection, store.Document{
		"subject":    subject,
		"status":     "Open",
		"user_id":    ownerID,
		"created_at": createdAt,
	})
	require.NoError(t, err)
	return id
}

func waitForView(t *testing.T, s *Session, cond func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		v := s.Snapshot()
		if cond(v) {
			return v
		}
		select {
		case <-deadline:
			t.Fatalf("view condition not met, last view had %d tickets (fromCache=%v)",
				len(v.Tickets), v.FromCache)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func subjects(v View) []string {
	out := make([]string, len(v.Tickets))
	for i, tk := range v.Tickets {
		out[i] = tk.Subject
	}
	return out
}

func TestSessionLiveStart(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, "user-1", "oldest", base)
	seedTicket(t, st, "user-2", "newest", base.Add(time.Hour))

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, testOptions())

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })
	assert.False(t, v.FromCache)
	assert.Equal(t, []string{"newest", "oldest"}, subjects(v), "newest first")
}

func TestSessionReceivesLiveChanges(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, "user-1", "first", base)

	opts := testOptions()
	opts.PageSize = 10
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, opts)
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })

	seedTicket(t, st, "user-2", "second", base.Add(time.Hour))
	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })
	assert.Equal(t, "second", v.Tickets[0].Subject)
}

func TestSessionEndUserScope(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, userViewer.ID, "mine", base)
	seedTicket(t, st, "someone-else", "theirs", base.Add(time.Hour))

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), userViewer, testOptions())

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })
	assert.Equal(t, []string{"mine"}, subjects(v))
}

func TestSessionHidesDeletedAndArchived(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, "user-1", "visible", base)
	id := seedTicket(t, st, "user-1", "gone", base.Add(time.Hour))

	opts := testOptions()
	opts.PageSize = 10
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, opts)
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })

	require.NoError(t, st.Update(context.Background(), ticket.Collection, id, store.Document{"deleted": true}))
	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })
	assert.Equal(t, []string{"visible"}, subjects(v))
}

// A fresh cache entry renders immediately and the live subscription is
// deferred for the rest of the freshness window, so the store is not read.
func TestSessionCacheFirstStart(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, userViewer.ID, "stored", base)

	tc := cache.NewMemoryTicketCache(time.Hour, 100)
	tc.Seed(userViewer.ID, time.Now(), []ticket.Ticket{
		{ID: "cached-1", Subject: "cached", Status: ticket.StatusOpen, OwnerUserID: userViewer.ID},
	})

	opts := testOptions()
	opts.CacheTTL = time.Hour
	s := startSession(t, st, tc, userViewer, opts)

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })
	assert.True(t, v.FromCache)
	assert.Equal(t, []string{"cached"}, subjects(v), "live read deferred while cache is fresh")
}

// An expired window goes straight to the live subscription.
func TestSessionExpiredCacheGoesLive(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, userViewer.ID, "stored", base)

	tc := cache.NewMemoryTicketCache(time.Minute, 100)
	tc.Seed(userViewer.ID, time.Now().Add(-2*time.Minute), []ticket.Ticket{
		{ID: "cached-1", Subject: "cached", OwnerUserID: userViewer.ID},
	})

	s := startSession(t, st, tc, userViewer, testOptions())

	v := waitForView(t, s, func(v View) bool { return !v.FromCache && len(v.Tickets) == 1 })
	assert.Equal(t, []string{"stored"}, subjects(v))
}

// When the store rejects the ordered subscription the session retries
// unordered and sorts locally; consumers still see newest first.
func TestSessionOrderedFallback(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailOrdered = true
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, "user-1", "oldest", base)
	seedTicket(t, st, "user-2", "newest", base.Add(time.Hour))

	opts := testOptions()
	opts.PageSize = 10
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, opts)

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })
	assert.Equal(t, []string{"newest", "oldest"}, subjects(v))
}

func TestSessionPagination(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedTicket(t, st, "user-1", []string{"t1", "t2", "t3", "t4", "t5"}[i], base.Add(time.Duration(i)*time.Hour))
	}

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, testOptions())

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })
	assert.True(t, v.HasMore)
	assert.Equal(t, []string{"t5", "t4"}, subjects(v))

	require.NoError(t, s.LoadMore(context.Background()))
	v = waitForView(t, s, func(v View) bool { return len(v.Tickets) == 4 })
	assert.Equal(t, []string{"t5", "t4", "t3", "t2"}, subjects(v))

	require.NoError(t, s.LoadMore(context.Background()))
	v = waitForView(t, s, func(v View) bool { return len(v.Tickets) == 5 })
	assert.Equal(t, []string{"t5", "t4", "t3", "t2", "t1"}, subjects(v))

	// The short final page marks the history as fully loaded.
	assert.False(t, v.HasMore)

	// No duplicates across the live window and fetched pages.
	seen := map[string]bool{}
	for _, tk := range v.Tickets {
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

// A newer arrival shifts the live window; the ticket it pushes out stays in
// the collection instead of silently disappearing.
func TestSessionWindowShiftKeepsEvicted(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	seedTicket(t, st, "user-1", "oldest", base)
	seedTicket(t, st, "user-2", "middle", base.Add(time.Hour))

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, testOptions())
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 2 })

	seedTicket(t, st, "user-3", "newest", base.Add(2*time.Hour))
	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 3 })
	assert.Equal(t, []string{"newest", "middle", "oldest"}, subjects(v))

	// The evicted ticket sits where the next page would start; a refetch
	// neither duplicates it nor skips anything.
	require.NoError(t, s.LoadMore(context.Background()))
	v = s.Snapshot()
	assert.ElementsMatch(t, []string{"newest", "middle", "oldest"}, subjects(v))
	assert.False(t, v.HasMore)
	seen := map[string]bool{}
	for _, tk := range v.Tickets {
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

// The unordered fallback cannot use a cursor; each "load more" refetches with
// a grown limit and merges by id, so repeated calls still reach the oldest
// records without ever duplicating one.
func TestSessionPaginationWithClientSort(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailOrdered = true
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedTicket(t, st, "user-1", []string{"t1", "t2", "t3", "t4", "t5"}[i], base.Add(time.Duration(i)*time.Hour))
	}

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, testOptions())
	waitForView(t, s, func(v View) bool { return len(v.Tickets) > 0 })

	require.NoError(t, s.LoadMore(context.Background()))
	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) >= 4 })

	require.NoError(t, s.LoadMore(context.Background()))
	v = waitForView(t, s, func(v View) bool { return len(v.Tickets) == 5 })
	assert.ElementsMatch(t, []string{"t1", "t2", "t3", "t4", "t5"}, subjects(v))
	assert.False(t, v.HasMore)

	seen := map[string]bool{}
	for _, tk := range v.Tickets {
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

func TestSessionDisplayCount(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	opts := testOptions()
	opts.PageSize = 10
	opts.DisplayCount = 2
	for i := 0; i < 4; i++ {
		seedTicket(t, st, "user-1", "ticket", base.Add(time.Duration(i)*time.Hour))
	}

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, opts)
	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 4 })
	assert.Len(t, v.Rendered(), 2)

	s.ShowAll()
	v = waitForView(t, s, func(v View) bool { return v.DisplayCount == 4 })
	assert.Len(t, v.Rendered(), 4)

	// Reset shrinks the rendered slice without dropping fetched tickets.
	s.ResetDisplay()
	v = waitForView(t, s, func(v View) bool { return v.DisplayCount == 2 })
	assert.Len(t, v.Tickets, 4)
	assert.Len(t, v.Rendered(), 2)
}

// A placeholder renders immediately under its temp id and is dropped the
// moment the authoritative record shows up, matched through the id mapping.
func TestSessionPlaceholderReplacement(t *testing.T) {
	st := store.NewMemoryStore()
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), userViewer, testOptions())
	waitForView(t, s, func(v View) bool { return !v.FromCache })

	pending := ticket.Ticket{Subject: "new ticket", Status: ticket.StatusOpen, OwnerUserID: userViewer.ID}
	s.TrackPlaceholder("temp-1", pending)

	v := waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })
	assert.Equal(t, "temp-1", v.Tickets[0].ID)

	realID := seedTicket(t, st, userViewer.ID, "new ticket", time.Now())
	s.ConfirmPlaceholder("temp-1", realID)

	v = waitForView(t, s, func(v View) bool {
		return len(v.Tickets) == 1 && v.Tickets[0].ID == realID
	})
	assert.Equal(t, []string{"new ticket"}, subjects(v))
}

func TestSessionPlaceholderDropOnFailure(t *testing.T) {
	st := store.NewMemoryStore()
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), userViewer, testOptions())
	waitForView(t, s, func(v View) bool { return !v.FromCache })

	s.TrackPlaceholder("temp-1", ticket.Ticket{Subject: "doomed", OwnerUserID: userViewer.ID})
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })

	s.DropPlaceholder("temp-1")
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 0 })
}

func TestSessionPlaceholderSweep(t *testing.T) {
	st := store.NewMemoryStore()
	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), userViewer, testOptions())
	waitForView(t, s, func(v View) bool { return !v.FromCache })

	s.TrackPlaceholder("temp-1", ticket.Ticket{Subject: "stuck", OwnerUserID: userViewer.ID})
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 })

	// Young placeholders survive the sweep, stale ones go.
	s.SweepPlaceholders(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, s.Snapshot().Tickets, 1)

	s.SweepPlaceholders(0)
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 0 })
}

// Editing a profile corrects an inconsistent location and reloads the
// collection so denormalized owner fields catch up.
func TestSessionProfileCorrection(t *testing.T) {
	st := store.NewMemoryStore()
	profileID, err := st.Create(context.Background(), ticket.ProfileCollection, store.Document{
		"name":       "Uma User",
		"department": "IT",
		"location":   "IT Server",
	})
	require.NoError(t, err)
	seedTicket(t, st, "user-1", "existing", time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC))

	s := startSession(t, st, cache.NewMemoryTicketCache(time.Minute, 100), staffViewer, testOptions())
	// Wait for a published live view so both subscriptions are up before the
	// profile edit; otherwise it lands in the initial snapshot and no
	// modification event is seen.
	waitForView(t, s, func(v View) bool { return !v.FromCache && len(v.Tickets) == 1 })

	// A department change leaves the location stale; the session writes the
	// mapped location back.
	require.NoError(t, st.Update(context.Background(), ticket.ProfileCollection, profileID, store.Document{
		"department": "Sales",
	}))

	require.Eventually(t, func() bool {
		doc, found, err := st.Get(context.Background(), ticket.ProfileCollection, profileID)
		return err == nil && found && doc.String("location") == "Branch"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSessionWritesThroughCache(t *testing.T) {
	st := store.NewMemoryStore()
	tc := cache.NewMemoryTicketCache(time.Minute, 100)
	seedTicket(t, st, userViewer.ID, "mine", time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC))

	s := startSession(t, st, tc, userViewer, testOptions())
	waitForView(t, s, func(v View) bool { return len(v.Tickets) == 1 && !v.FromCache })

	require.Eventually(t, func() bool {
		entry, ok := tc.Read(context.Background(), userViewer.ID)
		return ok && len(entry.Tickets) == 1 && entry.Tickets[0].Subject == "mine"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerRefcounting(t *testing.T) {
	st := store.NewMemoryStore()
	logger := zap.NewNop()
	m := &Manager{
		store:    st,
		cache:    cache.NewMemoryTicketCache(time.Minute, 100),
		names:    profile.NewNameResolver(st),
		profiles: profile.NewService(st, logger),
		logger:   logger,
		opts:     testOptions(),
		sessions: map[string]*refSession{},
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	t.Cleanup(m.Shutdown)

	first := m.Acquire(staffViewer)
	second := m.Acquire(staffViewer)
	assert.Same(t, first, second, "one session per viewer")

	m.Release(staffViewer.ID)
	_, alive := m.Peek(staffViewer.ID)
	assert.True(t, alive, "still referenced")

	m.Release(staffViewer.ID)
	_, alive = m.Peek(staffViewer.ID)
	assert.False(t, alive, "torn down with the last reference")
}
