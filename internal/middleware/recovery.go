package middleware

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/pkg/response"
)

// PageNameKey holds a per-route page name for the recovery envelope
const PageNameKey = "page_name"

// PageName sets the page name reported if the route panics
func PageName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(PageNameKey, name)
		c.Next()
	}
}

// Recovery turns a panic into the 500 error envelope.
// pageName is used unless the route set its own with PageName.
func Recovery(logger *slog.Logger, pageName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"request_id", c.GetString("request_id"),
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r),
				)
				name := pageName
				if v := c.GetString(PageNameKey); v != "" {
					name = v
				}
				response.InternalError(c, "Error interno del servidor", name)
				c.Abort()
			}
		}()
		c.Next()
	}
}
