package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the caller's
// model.Identity on the context. Missing, malformed, expired or foreign
// tokens are answered with 401 before the handler runs.
func JWTAuth(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimSpace(auth[7:])
			if raw == "" {
				return unauthorized(c, "missing bearer token")
			}

			id, err := issuer.Verify(raw)
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			SetIdentity(c, id)

			// later log lines of this request carry the caller
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("user_id", id.UserID, "role", id.Role)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg, "code": apperr.CodeAuthentication})
}
