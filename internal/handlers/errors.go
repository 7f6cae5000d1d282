package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/revoice/internal/queue"
	"github.com/codebuildervaibhav/revoice/internal/session"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// errorStatus maps the error taxonomy to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return fiber.StatusNotFound, "ERR_NOT_FOUND"
	case errors.Is(err, types.ErrTimelineOrder):
		return fiber.StatusConflict, "ERR_TIMELINE_ORDER"
	case errors.Is(err, session.ErrNotReady):
		return fiber.StatusConflict, "ERR_NOT_READY"
	case errors.Is(err, types.ErrDecode):
		return fiber.StatusUnprocessableEntity, "ERR_DECODE"
	case errors.Is(err, types.ErrSynthesis):
		return fiber.StatusBadGateway, "ERR_SYNTHESIS"
	case errors.Is(err, types.ErrMerge):
		return fiber.StatusInternalServerError, "ERR_MERGE"
	case errors.Is(err, queue.ErrQueueFull):
		return fiber.StatusServiceUnavailable, "ERR_QUEUE_FULL"
	default:
		return fiber.StatusInternalServerError, "ERR_INTERNAL"
	}
}

func sendError(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	if status >= 500 {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func badRequest(c *fiber.Ctx, msg, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
