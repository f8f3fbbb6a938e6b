package ticket

import (
	"go-helpdesk/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

type TicketController struct {
	TicketService TicketService
}

func NewTicketController(ticketService TicketService) *TicketController {
	return &TicketController{
		TicketService: ticketService,
	}
}

type transitionRequest struct {
	Note        string `json:"note"`
	FinalStatus string `json:"finalStatus"`
	Reason      string `json:"reason"`
}

func (ctrl *TicketController) Create(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req CreateInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	t, err := ctrl.TicketService.Create(c.Context(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (ctrl *TicketController) Get(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	t, err := ctrl.TicketService.Get(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

func (ctrl *TicketController) List(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	tickets, err := ctrl.TicketService.List(c.Context(), actor, c.QueryInt("limit"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

func (ctrl *TicketController) Updates(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	updates, err := ctrl.TicketService.Updates(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"updates": updates})
}

func (ctrl *TicketController) Permissions(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	actions, err := ctrl.TicketService.Permissions(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"actions": actions})
}

func (ctrl *TicketController) Edit(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var fields map[string]any
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	t, err := ctrl.TicketService.EditFields(c.Context(), actor, c.Params("id"), fields)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

// transition builds a handler for one lifecycle action.
func (ctrl *TicketController) transition(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		var req transitionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
				})
			}
		}

		params := TransitionParams{
			Note:        req.Note,
			FinalStatus: Status(req.FinalStatus),
			Reason:      req.Reason,
		}
		t, err := ctrl.TicketService.Apply(c.Context(), actor, c.Params("id"), action, params)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(t)
	}
}

func (ctrl *TicketController) Delete(c *fiber.Ctx) error {
	actor, ok := ActorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req transitionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	action := ActionDelete
	if c.Query("own") == "true" {
		action = ActionOwnerDelete
	}
	_, err := ctrl.TicketService.Apply(c.Context(), actor, c.Params("id"), action, TransitionParams{Reason: req.Reason})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Ticket deleted"})
}

// fail maps service errors onto HTTP responses.
func fail(c *fiber.Ctx, err error) error {
	if appErr := errs.As(err); appErr != nil {
		return c.Status(appErr.HTTPStatus).JSON(fiber.Map{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
