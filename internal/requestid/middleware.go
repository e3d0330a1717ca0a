package requestid

import "github.com/gofiber/fiber/v2"

// localsKey is where the middleware stores the id on the fiber context.
const localsKey = "request_id"

// Middleware assigns every request a fresh ID, echoes it in the
// X-Request-ID response header, and stores it in the request locals.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, id := New(c.Context())
		c.Set("X-Request-ID", id)
		c.Locals(localsKey, id)
		return c.Next()
	}
}

// FromFiber returns the request ID the middleware stored, or "" when the
// middleware did not run.
func FromFiber(c *fiber.Ctx) string {
	if id, ok := c.Locals(localsKey).(string); ok {
		return id
	}
	return ""
}
