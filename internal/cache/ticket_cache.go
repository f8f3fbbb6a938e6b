package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-helpdesk/internal/features/ticket"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Entry is the persisted cache payload: a bounded copy of the viewer's
// tickets plus the capture timestamp, so the reconciler can compute how much
// of the freshness window is left.
type Entry struct {
	Ts      int64           `json:"ts"` // epoch millis at capture
	Tickets []ticket.Ticket `json:"tickets"`
}

// CapturedAt returns the capture time of the entry.
func (e Entry) CapturedAt() time.Time {
	return time.UnixMilli(e.Ts)
}

// TicketCache is the per-viewer TTL cache. Implementations are best-effort:
// read misses and write failures degrade to live reads, never to errors the
// caller has to handle.
type TicketCache interface {
	// Read returns the unexpired entry for the actor, if any.
	Read(ctx context.Context, actorID string) (Entry, bool)
	// Write replaces the actor's entry, capping the stored ticket count.
	Write(ctx context.Context, actorID string, tickets []ticket.Ticket)
}

const keyPrefix = "userTickets:"

// RedisTicketCache persists entries in Redis under "userTickets:<actorId>"
// with a fixed TTL.
type RedisTicketCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	cap    int
	logger *zap.Logger
}

func NewRedisTicketCache(r *Redis, ttl time.Duration, cap int, logger *zap.Logger) *RedisTicketCache {
	return &RedisTicketCache{rdb: r.Client, ttl: ttl, cap: cap, logger: logger}
}

func (c *RedisTicketCache) Read(ctx context.Context, actorID string) (Entry, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+actorID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("ticket cache read failed", zap.Error(err))
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("ticket cache entry corrupt, dropping", zap.Error(err))
		return Entry{}, false
	}
	if time.Since(entry.CapturedAt()) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

func (c *RedisTicketCache) Write(ctx context.Context, actorID string, tickets []ticket.Ticket) {
	entry := Entry{Ts: time.Now().UnixMilli(), Tickets: capTickets(tickets, c.cap)}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("ticket cache marshal failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+actorID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("ticket cache write failed", zap.Error(err))
	}
}

// MemoryTicketCache is a process-local TicketCache used by tests and as a
// fallback when Redis is not configured.
type MemoryTicketCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	cap     int
	entries map[string]Entry
}

func NewMemoryTicketCache(ttl time.Duration, cap int) *MemoryTicketCache {
	return &MemoryTicketCache{ttl: ttl, cap: cap, entries: map[string]Entry{}}
}

func (c *MemoryTicketCache) Read(ctx context.Context, actorID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[actorID]
	if !ok || time.Since(entry.CapturedAt()) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

func (c *MemoryTicketCache) Write(ctx context.Context, actorID string, tickets []ticket.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[actorID] = Entry{Ts: time.Now().UnixMilli(), Tickets: capTickets(tickets, c.cap)}
}

// Seed installs an entry with an explicit capture time, for tests exercising
// the freshness window.
func (c *MemoryTicketCache) Seed(actorID string, capturedAt time.Time, tickets []ticket.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[actorID] = Entry{Ts: capturedAt.UnixMilli(), Tickets: capTickets(tickets, c.cap)}
}

func capTickets(tickets []ticket.Ticket, max int) []ticket.Ticket {
	if max > 0 && len(tickets) > max {
		tickets = tickets[:max]
	}
	out := make([]ticket.Ticket, len(tickets))
	copy(out, tickets)
	return out
}
