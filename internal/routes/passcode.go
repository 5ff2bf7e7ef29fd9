package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/passcode/internal/session"
)

// RegisterPasscodeRoutes wires the passcode status and flow endpoints.
func RegisterPasscodeRoutes(r fiber.Router, h *session.Handler, limiter fiber.Handler) {
	r.Get("/passcode", h.Status)
	r.Get("/passcode/appearance", h.Appearance)

	flows := r.Group("/passcode/flows")
	flows.Post("/", limiter, h.Start)
	flows.Get("/:id", h.Get)
	flows.Post("/:id/digits", h.Digit)
	flows.Delete("/:id/digits", h.Backspace)
	flows.Delete("/:id", h.Cancel)
}
