package ticket

import (
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TicketApi struct {
	controller *TicketController
	config     *config.Config
}

func NewTicketApi(controller *TicketController, config *config.Config) *TicketApi {
	return &TicketApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all ticket routes
func (h *TicketApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)
	grp := app.Group("/api/tickets", auth)

	grp.Post("/", h.controller.Create)
	grp.Get("/", h.controller.List)
	grp.Get("/:id", h.controller.Get)
	grp.Patch("/:id", h.controller.Edit)
	grp.Delete("/:id", h.controller.Delete)
	grp.Get("/:id/updates", h.controller.Updates)
	grp.Get("/:id/permissions", h.controller.Permissions)

	grp.Post("/:id/take", h.controller.transition(ActionTake))
	grp.Post("/:id/start", h.controller.transition(ActionStart))
	grp.Post("/:id/resolve", h.controller.transition(ActionResolve))
	grp.Post("/:id/reopen", h.controller.transition(ActionReopen))
}
