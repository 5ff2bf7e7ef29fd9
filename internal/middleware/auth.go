package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/passcode/internal/auth"
)

// OwnerKey is the Fiber local holding the authenticated owner id.
const OwnerKey = "owner_id"

// BearerAuth validates the bearer token and stores its subject as the owner.
func BearerAuth(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		owner, err := tokens.Subject(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(OwnerKey, owner)
		return c.Next()
	}
}

// Owner returns the authenticated owner id, or "" outside BearerAuth.
func Owner(c *fiber.Ctx) string {
	owner, _ := c.Locals(OwnerKey).(string)
	return owner
}
