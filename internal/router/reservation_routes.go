package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/handler"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/utils"
)

// RegisterReservations registers the reservation endpoints. Users see
// and change only their own reservations; Admins see all of them.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, issuer *utils.TokenIssuer, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations",
		middleware.JWTAuth(issuer),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
		limiter,
	)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Cancel)
}
