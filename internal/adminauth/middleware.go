package adminauth

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pusherd/pusherd/internal/httputil"
)

// RequireAdmin returns Fiber middleware that validates a JWT Bearer token issued by Login.
func RequireAdmin(secret, issuer string) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "missing authorization header")
		}

		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid authorization format")
		}
		tokenStr := header[len(prefix):]

		_, err := ValidateToken(tokenStr, secret, issuer)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "token has expired"
			}
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, message)
		}

		c.Locals("admin", true)
		return c.Next()
	}
}
