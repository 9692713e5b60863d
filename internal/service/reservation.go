package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/queue"
	"github.com/iliyamo/car-rental/internal/repository"
)

// MaxCustomerNameLen bounds the customer display name in characters.
const MaxCustomerNameLen = 120

// ReservationInput is a booking request. The owner is never part of it;
// it always comes from the caller's identity.
type ReservationInput struct {
	CarID        uint64
	DateFrom     time.Time
	DateTo       time.Time
	CustomerName string
}

// ReservationUpdate edits the dates and customer name of a reservation.
// The car cannot be changed.
type ReservationUpdate struct {
	DateFrom     time.Time
	DateTo       time.Time
	CustomerName string
}

// ReservationView is a reservation decorated with its car's display data.
type ReservationView struct {
	model.Reservation
	Vehicle model.VehicleInfo
}

// Ledger enforces the booking rules: strict date order, no overlapping
// [from, to) ranges per car, owner-or-Admin access.
//
// Non-owned reservations that exist are reported as AuthorizationError;
// missing ones as NotFoundError.
type Ledger struct {
	store    ReservationStore
	vehicles VehicleCatalog
	events   EventPublisher
}

func NewLedger(store ReservationStore, vehicles VehicleCatalog, events EventPublisher) *Ledger {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &Ledger{store: store, vehicles: vehicles, events: events}
}

// Create books a car for the caller.
func (l *Ledger) Create(ctx context.Context, caller model.Identity, in ReservationInput) (ReservationView, error) {
	from, to, name, err := validateBooking(in.DateFrom, in.DateTo, in.CustomerName)
	if err != nil {
		return ReservationView{}, err
	}
	if in.CarID == 0 {
		return ReservationView{}, apperr.Validation("carId is required")
	}
	ok, err := l.vehicles.Exists(ctx, in.CarID)
	if err != nil {
		return ReservationView{}, apperr.Internal("vehicle lookup failed", err)
	}
	if !ok {
		return ReservationView{}, apperr.Validation("car with id %d not found", in.CarID)
	}

	res := model.Reservation{
		CustomerName: name,
		DateFrom:     from,
		DateTo:       to,
		CarID:        in.CarID,
		UserID:       caller.UserID,
	}
	err = l.store.WithVehicleLock(ctx, in.CarID, func(w repository.ReservationWriter) error {
		if err := checkOverlap(ctx, w, res); err != nil {
			return err
		}
		return w.Insert(ctx, &res)
	})
	if err != nil {
		return ReservationView{}, l.lockErr(in.CarID, err)
	}

	view := l.decorate(ctx, res)
	logging.FromContext(ctx).Info("reservation created",
		"reservation_id", res.ID, "car_id", res.CarID, "user_id", res.UserID)
	l.publish(ctx, queue.ReservationCreated, caller, view)
	return view, nil
}

// Update changes the dates and customer name of a reservation, re-running
// the overlap check against every other reservation of the same car.
func (l *Ledger) Update(ctx context.Context, caller model.Identity, id uint64, in ReservationUpdate) (ReservationView, error) {
	current, err := l.load(ctx, caller, id)
	if err != nil {
		return ReservationView{}, err
	}
	from, to, name, err := validateBooking(in.DateFrom, in.DateTo, in.CustomerName)
	if err != nil {
		return ReservationView{}, err
	}

	next := current
	next.DateFrom, next.DateTo, next.CustomerName = from, to, name

	err = l.store.WithVehicleLock(ctx, current.CarID, func(w repository.ReservationWriter) error {
		if err := checkOverlap(ctx, w, next); err != nil {
			return err
		}
		return w.Update(ctx, next)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ReservationView{}, apperr.NotFound("reservation")
	}
	if err != nil {
		return ReservationView{}, l.lockErr(current.CarID, err)
	}

	view := l.decorate(ctx, next)
	l.publish(ctx, queue.ReservationUpdated, caller, view)
	return view, nil
}

// List returns every reservation to an Admin and only the caller's own
// reservations to anyone else.
func (l *Ledger) List(ctx context.Context, caller model.Identity) ([]ReservationView, error) {
	var (
		rows []model.Reservation
		err  error
	)
	if caller.IsAdmin() {
		rows, err = l.store.List(ctx)
	} else {
		rows, err = l.store.ListByUser(ctx, caller.UserID)
	}
	if err != nil {
		return nil, apperr.Internal("list reservations failed", err)
	}

	infos := map[uint64]model.VehicleInfo{}
	out := make([]ReservationView, 0, len(rows))
	for _, r := range rows {
		if !caller.CanAccess(r.UserID) {
			continue
		}
		info, seen := infos[r.CarID]
		if !seen {
			info = l.vehicleInfo(ctx, r.CarID)
			infos[r.CarID] = info
		}
		out = append(out, ReservationView{Reservation: r, Vehicle: info})
	}
	return out, nil
}

// Get returns one reservation the caller owns (or any, for an Admin).
func (l *Ledger) Get(ctx context.Context, caller model.Identity, id uint64) (ReservationView, error) {
	r, err := l.load(ctx, caller, id)
	if err != nil {
		return ReservationView{}, err
	}
	return l.decorate(ctx, r), nil
}

// Cancel deletes a reservation the caller owns (or any, for an Admin).
func (l *Ledger) Cancel(ctx context.Context, caller model.Identity, id uint64) error {
	r, err := l.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := l.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("reservation")
		}
		return apperr.Internal("cancel reservation failed", err)
	}
	logging.FromContext(ctx).Info("reservation cancelled",
		"reservation_id", id, "car_id", r.CarID, "actor_id", caller.UserID)
	l.publish(ctx, queue.ReservationCancelled, caller, l.decorate(ctx, r))
	return nil
}

func (l *Ledger) load(ctx context.Context, caller model.Identity, id uint64) (model.Reservation, error) {
	r, err := l.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, apperr.NotFound("reservation")
	}
	if err != nil {
		return model.Reservation{}, apperr.Internal("load reservation failed", err)
	}
	if !caller.CanAccess(r.UserID) {
		return model.Reservation{}, apperr.Authorization("reservation belongs to another user")
	}
	return r, nil
}

func (l *Ledger) lockErr(carID uint64, err error) error {
	if errors.Is(err, repository.ErrVehicleNotFound) {
		return apperr.Validation("car with id %d not found", carID)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal("save reservation failed", err)
}

func (l *Ledger) decorate(ctx context.Context, r model.Reservation) ReservationView {
	return ReservationView{Reservation: r, Vehicle: l.vehicleInfo(ctx, r.CarID)}
}

// vehicleInfo is best effort; a lookup failure leaves the display fields
// empty rather than failing the reservation call.
func (l *Ledger) vehicleInfo(ctx context.Context, carID uint64) model.VehicleInfo {
	info, err := l.vehicles.GetDisplayInfo(ctx, carID)
	if err != nil {
		logging.FromContext(ctx).Warn("vehicle display lookup failed", "car_id", carID, "error", err)
		return model.VehicleInfo{}
	}
	return info
}

func (l *Ledger) publish(ctx context.Context, typ string, actor model.Identity, v ReservationView) {
	ev := queue.ReservationEvent{
		Type:          typ,
		ReservationID: v.ID,
		UserID:        v.UserID,
		ActorID:       actor.UserID,
		CarID:         v.CarID,
		CarPlate:      v.Vehicle.Plate,
		CustomerName:  v.CustomerName,
		DateFrom:      v.DateFrom,
		DateTo:        v.DateTo,
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("reservation event not published", "type", typ, "error", err)
	}
}

// checkOverlap rejects r when any other reservation of its car intersects
// [r.DateFrom, r.DateTo). The store narrows candidates; Overlaps decides.
func checkOverlap(ctx context.Context, w repository.ReservationWriter, r model.Reservation) error {
	existing, err := w.Overlapping(ctx, r.CarID, r.DateFrom, r.DateTo, r.ID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ID != r.ID && e.OverlapsRange(r.DateFrom, r.DateTo) {
			return apperr.Conflict("car %d is already reserved from %s to %s",
				r.CarID, e.DateFrom.Format(time.RFC3339), e.DateTo.Format(time.RFC3339))
		}
	}
	return nil
}

// validateBooking normalises the range to UTC seconds (the storage
// precision) and enforces from < to and a non-blank customer name.
func validateBooking(from, to time.Time, customer string) (time.Time, time.Time, string, error) {
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, "", apperr.Validation("dateFrom and dateTo are required")
	}
	from = from.UTC().Truncate(time.Second)
	to = to.UTC().Truncate(time.Second)
	if !from.Before(to) {
		return time.Time{}, time.Time{}, "", apperr.Validation("dateFrom must be earlier than dateTo")
	}
	name := strings.TrimSpace(customer)
	if name == "" {
		return time.Time{}, time.Time{}, "", apperr.Validation("customerName is required")
	}
	if utf8.RuneCountInString(name) > MaxCustomerNameLen {
		return time.Time{}, time.Time{}, "", apperr.Validation("customerName must be at most %d characters", MaxCustomerNameLen)
	}
	return from, to, name, nil
}
