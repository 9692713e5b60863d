// Package service holds the business rules: the Authenticator (signup,
// login, refresh rotation, logout, profile), the Reservation Ledger and
// the car Catalog. Persistence is reached through the interfaces below,
// which the MySQL repositories satisfy.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/queue"
	"github.com/iliyamo/car-rental/internal/repository"
)

// UserStore is the Credential Store.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID uint64) (bool, error)
	UpdateProfile(ctx context.Context, id uint64, username, passwordHash *string) error
}

// TokenStore keeps refresh-token state; it is the only source of truth
// for whether a refresh token is usable.
type TokenStore interface {
	Store(ctx context.Context, t *model.RefreshToken) error
	Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) (model.RefreshToken, error)
	RevokeByHash(ctx context.Context, hash string, now time.Time) error
	RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error
}

// ReservationStore persists reservations. WithVehicleLock makes the
// overlap check and the write one atomic step per vehicle.
type ReservationStore interface {
	WithVehicleLock(ctx context.Context, carID uint64, fn func(repository.ReservationWriter) error) error
	List(ctx context.Context) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
}

// VehicleCatalog is the read-only view of the fleet the ledger needs.
type VehicleCatalog interface {
	Exists(ctx context.Context, vehicleID uint64) (bool, error)
	GetDisplayInfo(ctx context.Context, vehicleID uint64) (model.VehicleInfo, error)
}

// CarStore and ClassStore back the Catalog.
type CarStore interface {
	List(ctx context.Context) ([]model.Car, error)
	ListByClass(ctx context.Context, classID uint64) ([]model.Car, error)
	GetByID(ctx context.Context, id uint64) (model.Car, error)
	Exists(ctx context.Context, id uint64) (bool, error)
	Create(ctx context.Context, c *model.Car) error
	Update(ctx context.Context, c model.Car) error
	Delete(ctx context.Context, id uint64) error
}

type ClassStore interface {
	List(ctx context.Context) ([]model.CarClass, error)
	GetByID(ctx context.Context, id uint64) (model.CarClass, error)
	Create(ctx context.Context, c *model.CarClass) error
	Update(ctx context.Context, c model.CarClass) error
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher delivers reservation events. Failures never fail the
// request that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
