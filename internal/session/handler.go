package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/passcode/internal/appearance"
	"github.com/congo-pay/passcode/internal/middleware"
	"github.com/congo-pay/passcode/internal/passcode"
	"github.com/congo-pay/passcode/internal/secret"
)

// Handler exposes passcode flows over HTTP. Every route expects middleware.BearerAuth.
type Handler struct {
	sessions *Manager
	secrets  secret.Repository
	look     appearance.Appearance
	logger   *slog.Logger
}

// NewHandler constructs a passcode HTTP handler.
func NewHandler(sessions *Manager, secrets secret.Repository, look appearance.Appearance, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, secrets: secrets, look: look, logger: logger}
}

type startRequest struct {
	Mode string `json:"mode"`
}

type digitRequest struct {
	Digit *int `json:"digit"`
}

// Status reports whether the caller has a passcode.
func (h *Handler) Status(c *fiber.Ctx) error {
	ok, err := secret.Exists(c.UserContext(), h.secrets, middleware.Owner(c))
	if err != nil {
		h.logger.Error("passcode status lookup failed", slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "passcode store unavailable")
	}
	return c.JSON(fiber.Map{"has_passcode": ok})
}

// Appearance returns the display configuration for lock screens.
func (h *Handler) Appearance(c *fiber.Ctx) error {
	return c.JSON(h.look)
}

// Start opens a flow.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	mode, err := passcode.ParseMode(req.Mode)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.sessions.Start(c.UserContext(), middleware.Owner(c), mode)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

// Get returns the current snapshot of a flow.
func (h *Handler) Get(c *fiber.Ctx) error {
	snap, err := h.sessions.Get(c.UserContext(), c.Params("id"), middleware.Owner(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(snap)
}

// Digit enters one digit.
func (h *Handler) Digit(c *fiber.Ctx) error {
	var req digitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Digit == nil {
		return fiber.NewError(http.StatusBadRequest, "digit is required")
	}
	snap, err := h.sessions.Digit(c.UserContext(), c.Params("id"), middleware.Owner(c), *req.Digit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(snap)
}

// Backspace removes the last digit.
func (h *Handler) Backspace(c *fiber.Ctx) error {
	snap, err := h.sessions.Backspace(c.UserContext(), c.Params("id"), middleware.Owner(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(snap)
}

// Cancel dismisses a flow.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	snap, err := h.sessions.Cancel(c.UserContext(), c.Params("id"), middleware.Owner(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(snap)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExpired):
		return fiber.NewError(http.StatusGone, err.Error())
	case errors.Is(err, passcode.ErrInvalidDigit), errors.Is(err, passcode.ErrUnknownMode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPasscodeExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, passcode.ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "passcode store unavailable")
	case errors.Is(err, passcode.ErrInputFull), errors.Is(err, passcode.ErrFlowClosed), errors.Is(err, passcode.ErrEvaluating):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
