package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const callbackTokenHeader = "X-Callback-Token"

// CallbackToken rejects callbacks that do not present the shared token, either
// in the X-Callback-Token header or the "token" query parameter. An empty
// token disables the check.
func CallbackToken(token string) fiber.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return c.Next()
		}

		got := strings.TrimSpace(c.Get(callbackTokenHeader))
		if got == "" {
			got = strings.TrimSpace(c.Query("token"))
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid callback token")
		}
		return c.Next()
	}
}
