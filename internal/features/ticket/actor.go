package ticket

import (
	"go-helpdesk/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// ActorFromCtx converts claims stored by the auth middleware into the
// canonical Actor shape.
func ActorFromCtx(c *fiber.Ctx) (Actor, bool) {
	claims, ok := c.Locals(utils.ActorClaimsKey).(*utils.ActorClaims)
	if !ok {
		return Actor{}, false
	}
	return ActorFromClaims(claims), true
}

// ActorFromClaims maps claims to an Actor; unknown roles degrade to User.
func ActorFromClaims(claims *utils.ActorClaims) Actor {
	role := Role(claims.Role)
	switch role {
	case RoleSuperAdmin, RoleITEngineer, RoleITTechSupport, RoleITVisual, RoleUser:
	default:
		role = RoleUser
	}
	return Actor{
		ID:         claims.UserID,
		Role:       role,
		Name:       claims.Name,
		Email:      claims.Email,
		Department: claims.Department,
	}
}
