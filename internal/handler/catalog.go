package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/service"
)

// CatalogHandler serves car classes and cars. Reads are public; writes
// are routed behind the Admin role.
type CatalogHandler struct {
	Catalog *service.Catalog
	Timeout time.Duration
}

func NewCatalogHandler(cat *service.Catalog, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{Catalog: cat, Timeout: timeout}
}

type classReq struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
}

type carReq struct {
	PlateNumber string `json:"plateNumber" validate:"required,max=32"`
	Brand       string `json:"brand" validate:"max=64"`
	Model       string `json:"model" validate:"max=64"`
	IsAvailable *bool  `json:"isAvailable"`
	CarClassID  uint64 `json:"carClassId" validate:"required"`
}

type classResp struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type carResp struct {
	ID           uint64 `json:"id"`
	PlateNumber  string `json:"plateNumber"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	IsAvailable  bool   `json:"isAvailable"`
	CarClassID   uint64 `json:"carClassId"`
	CarClassName string `json:"carClassName"`
}

func toClassResp(c model.CarClass) classResp {
	return classResp{ID: c.ID, Name: c.Name, Description: c.Description}
}

func toCarResp(c model.Car) carResp {
	return carResp{
		ID:           c.ID,
		PlateNumber:  c.PlateNumber,
		Brand:        c.Brand,
		Model:        c.Model,
		IsAvailable:  c.IsAvailable,
		CarClassID:   c.CarClassID,
		CarClassName: c.ClassName,
	}
}

func toCarResps(cars []model.Car) []carResp {
	out := make([]carResp, 0, len(cars))
	for _, c := range cars {
		out = append(out, toCarResp(c))
	}
	return out
}

func (req carReq) input() service.CarInput {
	return service.CarInput{
		PlateNumber: req.PlateNumber,
		Brand:       req.Brand,
		Model:       req.Model,
		IsAvailable: req.IsAvailable,
		CarClassID:  req.CarClassID,
	}
}

// ----- car classes -----

func (h *CatalogHandler) ListClasses(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	classes, err := h.Catalog.ListClasses(ctx)
	if err != nil {
		return err
	}
	out := make([]classResp, 0, len(classes))
	for _, cls := range classes {
		out = append(out, toClassResp(cls))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetClass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	cls, err := h.Catalog.GetClass(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClassResp(cls))
}

// ListClassCars lists the cars of one class.
func (h *CatalogHandler) ListClassCars(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	cars, err := h.Catalog.ListCarsByClass(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCarResps(cars))
}

func (h *CatalogHandler) CreateClass(c echo.Context) error {
	var req classReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	cls, err := h.Catalog.CreateClass(ctx, service.ClassInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toClassResp(cls))
}

func (h *CatalogHandler) UpdateClass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req classReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	cls, err := h.Catalog.UpdateClass(ctx, id, service.ClassInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClassResp(cls))
}

func (h *CatalogHandler) DeleteClass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Catalog.DeleteClass(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- cars -----

func (h *CatalogHandler) ListCars(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	cars, err := h.Catalog.ListCars(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCarResps(cars))
}

func (h *CatalogHandler) GetCar(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	car, err := h.Catalog.GetCar(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCarResp(car))
}

func (h *CatalogHandler) CreateCar(c echo.Context) error {
	var req carReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	car, err := h.Catalog.CreateCar(ctx, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCarResp(car))
}

func (h *CatalogHandler) UpdateCar(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req carReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	car, err := h.Catalog.UpdateCar(ctx, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCarResp(car))
}

func (h *CatalogHandler) DeleteCar(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Catalog.DeleteCar(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
