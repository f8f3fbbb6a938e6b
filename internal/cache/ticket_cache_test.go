package cache

import (
	"context"
	"testing"
	"time"

	"go-helpdesk/internal/features/ticket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func someTickets(n int) []ticket.Ticket {
	out := make([]ticket.Ticket, n)
	for i := range out {
		out[i] = ticket.Ticket{ID: string(rune('a' + i)), Subject: "ticket", Status: ticket.StatusOpen}
	}
	return out
}

func TestMemoryTicketCacheRoundTrip(t *testing.T) {
	c := NewMemoryTicketCache(time.Minute, 100)

	_, ok := c.Read(context.Background(), "user-1")
	assert.False(t, ok, "empty cache misses")

	c.Write(context.Background(), "user-1", someTickets(3))

	entry, ok := c.Read(context.Background(), "user-1")
	require.True(t, ok)
	assert.Len(t, entry.Tickets, 3)
	assert.WithinDuration(t, time.Now(), entry.CapturedAt(), time.Second)

	_, ok = c.Read(context.Background(), "user-2")
	assert.False(t, ok, "entries are per viewer")
}

func TestMemoryTicketCacheExpiry(t *testing.T) {
	c := NewMemoryTicketCache(time.Minute, 100)
	c.Seed("user-1", time.Now().Add(-2*time.Minute), someTickets(1))

	_, ok := c.Read(context.Background(), "user-1")
	assert.False(t, ok, "expired entries read as misses")

	c.Seed("user-1", time.Now().Add(-30*time.Second), someTickets(1))
	_, ok = c.Read(context.Background(), "user-1")
	assert.True(t, ok, "entries inside the window hit")
}

func TestTicketCacheCapsEntries(t *testing.T) {
	c := NewMemoryTicketCache(time.Minute, 5)
	c.Write(context.Background(), "user-1", someTickets(9))

	entry, ok := c.Read(context.Background(), "user-1")
	require.True(t, ok)
	assert.Len(t, entry.Tickets, 5, "stored entry is capped, newest first half kept")
}

func TestTicketCacheWriteCopies(t *testing.T) {
	c := NewMemoryTicketCache(time.Minute, 100)
	tickets := someTickets(2)
	c.Write(context.Background(), "user-1", tickets)

	tickets[0].Subject = "mutated"

	entry, _ := c.Read(context.Background(), "user-1")
	assert.Equal(t, "ticket", entry.Tickets[0].Subject)
}
