package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/model"
)

// RequireRole lets the request through only when JWTAuth stored a caller
// whose role is one of roles. A missing identity is treated as forbidden.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || !allowed[id.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": apperr.CodeAuthorization})
			}
			return next(c)
		}
	}
}
