package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/api/handler"
	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// RBAC lets the request through only for the listed roles. Other roles get
// domain.ErrForbidden.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(handler.CtxRole).(string)
			if _, ok := allowed[domain.Role(role)]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
