package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const replayedKey = "idempotent_replay"

// Audit writes one record per request carrying the caller, the flow touched and whether
// the response came from the idempotency cache. Entered digits are never part of it.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if owner := Owner(c); owner != "" {
			attrs = append(attrs, slog.String("owner_id", owner))
		}
		if flowID := c.Params("id"); flowID != "" {
			attrs = append(attrs, slog.String("flow_id", flowID))
		}
		if replayed, _ := c.Locals(replayedKey).(bool); replayed {
			attrs = append(attrs, slog.Bool("replayed", true))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("passcode request", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("passcode request", attrs...)
		default:
			logger.Info("passcode request", attrs...)
		}
		return err
	}
}
