package middleware

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// StatusMapping pairs a sentinel error with the HTTP status it produces.
type StatusMapping struct {
	Err    error
	Status int
}

// NewErrorHandler centralizes error responses. Errors matching a mapping keep
// their message; anything else is logged and reported as a bare 500.
func NewErrorHandler(mappings ...StatusMapping) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, e := range ve {
				out[e.Field()] = e.Tag()
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "validation failed",
				"errors":  out,
			})
		}

		for _, m := range mappings {
			if errors.Is(err, m.Err) {
				if m.Status >= fiber.StatusInternalServerError {
					log.Warnw("request failed", "path", c.Path(), "status", m.Status, "error", err)
				}
				return c.Status(m.Status).JSON(fiber.Map{"message": capitalize(err.Error())})
			}
		}

		log.Errorw("internal error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
