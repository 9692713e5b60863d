package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/service"
)

// ReservationHandler exposes the reservation ledger to Users and Admins.
// The owner of a new reservation is always the caller.
type ReservationHandler struct {
	Ledger  *service.Ledger
	Timeout time.Duration
}

func NewReservationHandler(l *service.Ledger, timeout time.Duration) *ReservationHandler {
	return &ReservationHandler{Ledger: l, Timeout: timeout}
}

type createReservationReq struct {
	CarID        uint64    `json:"carId" validate:"required"`
	DateFrom     time.Time `json:"dateFrom"`
	DateTo       time.Time `json:"dateTo"`
	CustomerName string    `json:"customerName" validate:"required,max=120"`
}

type updateReservationReq struct {
	DateFrom     time.Time `json:"dateFrom"`
	DateTo       time.Time `json:"dateTo"`
	CustomerName string    `json:"customerName" validate:"required,max=120"`
}

type reservationResp struct {
	ID             uint64    `json:"id"`
	CustomerName   string    `json:"customerName"`
	DateFrom       time.Time `json:"dateFrom"`
	DateTo         time.Time `json:"dateTo"`
	CarID          uint64    `json:"carId"`
	CarPlateNumber string    `json:"carPlateNumber"`
	CarClassName   string    `json:"carClassName"`
	UserID         uint64    `json:"userId"`
}

func toReservationResp(v service.ReservationView) reservationResp {
	return reservationResp{
		ID:             v.ID,
		CustomerName:   v.CustomerName,
		DateFrom:       v.DateFrom,
		DateTo:         v.DateTo,
		CarID:          v.CarID,
		CarPlateNumber: v.Vehicle.Plate,
		CarClassName:   v.Vehicle.Class,
		UserID:         v.UserID,
	}
}

// Create books a car for the caller.
func (h *ReservationHandler) Create(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Authentication("unauthorized")
	}
	var req createReservationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	v, err := h.Ledger.Create(ctx, caller, service.ReservationInput{
		CarID:        req.CarID,
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResp(v))
}

// List returns the caller's reservations, or all of them for an Admin.
func (h *ReservationHandler) List(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Authentication("unauthorized")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	views, err := h.Ledger.List(ctx, caller)
	if err != nil {
		return err
	}
	out := make([]reservationResp, 0, len(views))
	for _, v := range views {
		out = append(out, toReservationResp(v))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) Get(c echo.Context) error {
	caller, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	v, err := h.Ledger.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResp(v))
}

// Update replaces the dates and customer name; serves PUT and PATCH.
func (h *ReservationHandler) Update(c echo.Context) error {
	caller, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	var req updateReservationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	v, err := h.Ledger.Update(ctx, caller, id, service.ReservationUpdate{
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResp(v))
}

func (h *ReservationHandler) Cancel(c echo.Context) error {
	caller, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Ledger.Cancel(ctx, caller, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func callerAndID(c echo.Context) (model.Identity, uint64, error) {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Identity{}, 0, apperr.Authentication("unauthorized")
	}
	id, err := pathID(c, "id")
	return caller, id, err
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}
