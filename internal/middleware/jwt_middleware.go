package middleware

import (
	"log"
	"strings"

	"bistro/internal/models"
	"bistro/internal/services"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// AuthRequired is a Fiber middleware that validates the bearer token and
// stores the caller's models.Actor in the request locals.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return unauthorized(c, "Invalid or expired token")
		}

		actor, err := services.ActorFromClaims(claims)
		if err != nil {
			log.Printf("JWT claims rejected: %v", err)
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(actorKey, actor)
		c.Locals("username", claims["username"])
		return c.Next()
	}
}

// RequireStaff rejects callers whose token does not carry the staff role.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ActorFrom(c).IsStaff() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "staff access required",
			})
		}
		return c.Next()
	}
}

// ActorFrom returns the actor stored by AuthRequired, or the zero Actor.
func ActorFrom(c *fiber.Ctx) models.Actor {
	actor, _ := c.Locals(actorKey).(models.Actor)
	return actor
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
