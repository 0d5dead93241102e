package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "backoffice/internal/log"
)

const OperatorTokenHeader = "X-Operator-Token"

// RequireOperator admits requests whose operator token matches the bcrypt
// hash. An empty hash admits everyone; the host platform authenticates.
func RequireOperator(hash string) fiber.Handler {
	if hash == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		tok := c.Get(OperatorTokenHeader)
		if tok == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(tok)) != nil {
			applog.Security(c, "access.denied.operator", map[string]any{"token_present": tok != ""})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "operator token required"})
		}
		return c.Next()
	}
}
