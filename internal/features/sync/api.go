package sync

import (
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type FeedApi struct {
	controller *FeedController
	config     *config.Config
}

func NewFeedApi(controller *FeedController, config *config.Config) *FeedApi {
	return &FeedApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers the live feed socket and its HTTP command surface
func (h *FeedApi) Setup(app *fiber.App) {
	app.Get("/api/feed/ws", websocket.New(h.controller.HandleFeed))

	auth := middleware.AuthMiddleware(h.config.SkipAuth)
	grp := app.Group("/api/feed", auth)
	grp.Get("/", h.controller.Snapshot)
	grp.Post("/load-more", h.controller.LoadMore)
	grp.Post("/show-all", h.controller.ShowAll)
	grp.Post("/reset", h.controller.ResetDisplay)
}
