package middleware

import (
	icuser "github.com/ManuelReschke/SchoolPay/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// RequireAPIAuth ensures an authenticated caller and returns JSON 401 otherwise.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "authentication required",
		})
	}
	return c.Next()
}

// RequireAPIAdmin ensures an authenticated admin caller.
func RequireAPIAdmin(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "authentication required",
		})
	}
	if !icuser.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin role required",
		})
	}
	return c.Next()
}
