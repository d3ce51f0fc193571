package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

// CSRFHeader is the header mutating requests must echo the token in.
const CSRFHeader = "X-CSRF-Token"

// CSRF returns the anti-forgery middleware. Safe methods receive a token
// cookie; every other method must send it back in CSRFHeader.
func CSRF() fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "header:" + CSRFHeader,
		CookieName:     "csrf_",
		CookiePath:     "/",
		CookieSameSite: "Lax",
		Expiration:     time.Hour,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "missing or invalid anti-forgery token",
			})
		},
	})
}
