package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/handler"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/utils"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterAuth registers the credential endpoints under /v1/auth, all
// behind limiter, and the caller's own profile under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/logout-all", a.LogoutAll,
		middleware.JWTAuth(issuer),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)

	me := e.Group("/v1/me",
		middleware.JWTAuth(issuer),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	me.GET("", a.Me)
	me.PATCH("", a.UpdateMe)
}
