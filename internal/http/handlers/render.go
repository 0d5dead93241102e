package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"backoffice/internal/domain"
	applog "backoffice/internal/log"
)

// respondErr maps a service error onto a status and a JSON body. Internal
// errors are logged and never echoed.
func respondErr(c *fiber.Ctx, action string, err error) error {
	status, msg := fiber.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrValidation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, msg = fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrExternalProvider):
		status, msg = fiber.StatusBadGateway, "label provider failed; no order was changed"
	}
	c.Status(status)
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, action+".fail", err, nil)
	} else {
		applog.Info(c, action+".reject", map[string]any{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ErrorHandler answers API paths with JSON and everything else with the error
// page. Only fiber errors keep their message; anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, "Something went wrong. Please try again."
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		status, msg = fe.Code, fe.Message
	} else {
		applog.Error(c, "server.error", err, nil)
	}

	c.Status(status)
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.JSON(fiber.Map{"error": msg})
	}
	rid, _ := c.Locals("requestid").(string)
	if rerr := c.Render("error", fiber.Map{
		"Title":     statusTitle(status),
		"Message":   msg,
		"RequestID": rid,
	}); rerr != nil {
		return c.SendString(msg)
	}
	return nil
}

func statusTitle(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "Not found"
	case fiber.StatusTooManyRequests:
		return "Slow down"
	case fiber.StatusRequestEntityTooLarge:
		return "Request too large"
	}
	if status >= fiber.StatusInternalServerError {
		return "Server error"
	}
	return "Request rejected"
}
