package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/model"
)

// identityKey is where JWTAuth stores the caller on the echo.Context.
const identityKey = "identity"

// SetIdentity stores the authenticated caller on c.
func SetIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// userID is the caller's id as a string, or "anon" for unauthenticated
// requests. It only keys rate-limit buckets.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.UserID != 0 {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
