package sync

import (
	"context"
	"encoding/json"

	"go-helpdesk/internal/common/errs"
	"go-helpdesk/internal/config"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/pkg/utils"
)

type FeedController struct {
	Manager *Manager
	Config  *config.Config
	Logger  *zap.Logger
}

func NewFeedController(manager *Manager, cfg *config.Config, logger *zap.Logger) *FeedController {
	return &FeedController{Manager: manager, Config: cfg, Logger: logger}
}

// feedCommand is what the client sends over the socket.
type feedCommand struct {
	Action string `json:"action"`
}

type feedFrame struct {
	Tickets      []ticket.Ticket `json:"tickets"`
	DisplayCount int             `json:"displayCount"`
	FromCache    bool            `json:"fromCache"`
	HasMore      bool            `json:"hasMore"`
	Total        int             `json:"total"`
}

func frameOf(v View) feedFrame {
	return feedFrame{
		Tickets:      v.Rendered(),
		DisplayCount: v.DisplayCount,
		FromCache:    v.FromCache,
		HasMore:      v.HasMore,
		Total:        len(v.Tickets),
	}
}

// HandleFeed serves the live ticket feed. The browser websocket API cannot
// set headers, so the token rides in a query parameter.
func (h *FeedController) HandleFeed(c *websocket.Conn) {
	actor, ok := h.actorFromConn(c)
	if !ok {
		c.WriteJSON(fiber.Map{"error": "Unauthorized"})
		c.Close()
		return
	}

	session := h.Manager.Acquire(actor)
	defer h.Manager.Release(actor.ID)

	views := session.Watch()
	defer session.Unwatch(views)

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var cmd feedCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				h.Logger.Warn("bad feed command", zap.String("actorId", actor.ID), zap.Error(err))
				continue
			}
			switch cmd.Action {
			case "loadMore":
				if err := session.LoadMore(context.Background()); err != nil {
					h.Logger.Warn("load more failed", zap.String("actorId", actor.ID), zap.Error(err))
				}
			case "showAll":
				session.ShowAll()
			case "resetDisplay":
				session.ResetDisplay()
			}
		}
	}()

	// Initial frame, then push on every change.
	if err := c.WriteJSON(frameOf(session.Snapshot())); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if err := c.WriteJSON(frameOf(v)); err != nil {
				return
			}
		}
	}
}

func (h *FeedController) actorFromConn(c *websocket.Conn) (ticket.Actor, bool) {
	token := c.Query("token")
	if token == "" {
		if h.Config.SkipAuth {
			return ticket.Actor{ID: "dev-admin-id", Role: ticket.RoleSuperAdmin, Name: "Dev Admin"}, true
		}
		return ticket.Actor{}, false
	}
	claims, err := utils.ValidateToken(token)
	if err != nil {
		return ticket.Actor{}, false
	}
	return ticket.ActorFromClaims(claims), true
}

// LoadMore, ShowAll and ResetDisplay are the HTTP command surface for
// clients driving the feed out of band. They act on the live session only.

func (h *FeedController) LoadMore(c *fiber.Ctx) error {
	session, ok := h.liveSession(c)
	if !ok {
		return h.noFeed(c)
	}
	if err := session.LoadMore(c.Context()); err != nil {
		appErr := errs.As(err)
		return c.Status(appErr.HTTPStatus).JSON(fiber.Map{"error": appErr.Message, "code": appErr.Code})
	}
	return c.JSON(frameOf(session.Snapshot()))
}

func (h *FeedController) ShowAll(c *fiber.Ctx) error {
	session, ok := h.liveSession(c)
	if !ok {
		return h.noFeed(c)
	}
	session.ShowAll()
	return c.JSON(frameOf(session.Snapshot()))
}

func (h *FeedController) ResetDisplay(c *fiber.Ctx) error {
	session, ok := h.liveSession(c)
	if !ok {
		return h.noFeed(c)
	}
	session.ResetDisplay()
	return c.JSON(frameOf(session.Snapshot()))
}

func (h *FeedController) Snapshot(c *fiber.Ctx) error {
	session, ok := h.liveSession(c)
	if !ok {
		return h.noFeed(c)
	}
	return c.JSON(frameOf(session.Snapshot()))
}

func (h *FeedController) liveSession(c *fiber.Ctx) (*Session, bool) {
	actor, ok := ticket.ActorFromCtx(c)
	if !ok {
		return nil, false
	}
	return h.Manager.Peek(actor.ID)
}

func (h *FeedController) noFeed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "No active feed for this user"})
}
