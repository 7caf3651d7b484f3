package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// RBAC admits callers whose role claim is one of roles. It must run after
// Auth. Rejections are domain.ErrForbidden so the central error handler
// renders them like any other authorization failure.
func RBAC(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if !allowed[role] {
				return fmt.Errorf("role %q on %s %s: %w", role, c.Request().Method, c.Path(), domain.ErrForbidden)
			}
			return next(c)
		}
	}
}
