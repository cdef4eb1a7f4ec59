package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/helmet/v2"
)

// SecureHeaders sets the default security headers.
func SecureHeaders() fiber.Handler {
	return helmet.New()
}
