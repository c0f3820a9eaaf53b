package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on successful GET responses
// unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK ||
			len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}
		if cc := cacheControlFor(c.Path()); cc != "" {
			c.Set(fiber.HeaderCacheControl, cc)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics":
		return "no-cache"
	case strings.HasPrefix(path, "/v1/rules"):
		// Rules only change on deploy.
		return "public, max-age=3600"
	case strings.HasPrefix(path, "/v1/runs"):
		return "no-cache"
	case strings.HasPrefix(path, "/v1/issues/"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/issues"):
		return "public, max-age=60"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=60"
	}
	return ""
}
