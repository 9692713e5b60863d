package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/handler"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/utils"
)

// RegisterCatalog exposes car classes and cars. Reads are public and go
// through cache; writes need the Admin role.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, issuer *utils.TokenIssuer, cache echo.MiddlewareFunc) {
	pub := e.Group("/v1", cache)
	pub.GET("/car-classes", h.ListClasses)
	pub.GET("/car-classes/:id", h.GetClass)
	pub.GET("/car-classes/:id/cars", h.ListClassCars)
	pub.GET("/cars", h.ListCars)
	pub.GET("/cars/:id", h.GetCar)

	admin := e.Group("/v1",
		middleware.JWTAuth(issuer),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/car-classes", h.CreateClass)
	admin.PUT("/car-classes/:id", h.UpdateClass)
	admin.DELETE("/car-classes/:id", h.DeleteClass)
	admin.POST("/cars", h.CreateCar)
	admin.PUT("/cars/:id", h.UpdateCar)
	admin.DELETE("/cars/:id", h.DeleteCar)
}
