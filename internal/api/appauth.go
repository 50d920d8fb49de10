package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/pusherd/pusherd/internal/app"
	"github.com/pusherd/pusherd/internal/credentials"
	"github.com/pusherd/pusherd/internal/httputil"
)

// appLocalsKey is the Locals key RequireAppAuth stashes the resolved *app.App under.
const appLocalsKey = "app"

// appIDParam parses the :app_id path parameter as a numeric app id.
func appIDParam(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("app_id"), 10, 64)
}

// RequireAppAuth returns Fiber middleware that resolves the :app_id path parameter against apps and verifies the
// X-App-Signature header over "<method>:<path>:<body>" using the same key/secret HMAC scheme channel subscribe auth
// uses. This is the server-to-server credential for an app's own traffic, separate from the admin JWT that gates
// tenant provisioning. On success the resolved *app.App is stashed in Locals for downstream handlers.
func RequireAppAuth(apps app.Repository) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := appIDParam(c)
		if err != nil {
			return httputil.Fail(c, fiber.StatusNotFound, httputil.CodeNotFound, "app not found")
		}

		a, err := apps.FindByID(c.Context(), id)
		if err != nil {
			return httputil.Fail(c, fiber.StatusNotFound, httputil.CodeNotFound, "app not found")
		}

		signature := c.Get("X-App-Signature")
		if !credentials.Verify(a.Key, a.Secret, signature, c.Method(), c.Path(), string(c.Body())) {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid signature")
		}

		c.Locals(appLocalsKey, a)
		return c.Next()
	}
}

// appFromLocals retrieves the *app.App stashed by RequireAppAuth. It is only valid to call from a handler mounted
// behind that middleware.
func appFromLocals(c fiber.Ctx) *app.App {
	a, _ := c.Locals(appLocalsKey).(*app.App)
	return a
}
