package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/repository"
)

// ClassInput is the create/update form of a car class.
type ClassInput struct {
	Name        string
	Description string
}

// CarInput is the create/update form of a car. A nil IsAvailable means
// available on create and unchanged on update.
type CarInput struct {
	PlateNumber string
	Brand       string
	Model       string
	IsAvailable *bool
	CarClassID  uint64
}

// Catalog manages car classes and cars. It also serves as the ledger's
// VehicleCatalog.
type Catalog struct {
	cars    CarStore
	classes ClassStore
}

func NewCatalog(cars CarStore, classes ClassStore) *Catalog {
	return &Catalog{cars: cars, classes: classes}
}

func (c *Catalog) ListClasses(ctx context.Context) ([]model.CarClass, error) {
	out, err := c.classes.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list car classes failed", err)
	}
	return out, nil
}

func (c *Catalog) GetClass(ctx context.Context, id uint64) (model.CarClass, error) {
	cls, err := c.classes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CarClass{}, apperr.NotFound("car class")
	}
	if err != nil {
		return model.CarClass{}, apperr.Internal("load car class failed", err)
	}
	return cls, nil
}

// ListCarsByClass returns the cars of an existing class.
func (c *Catalog) ListCarsByClass(ctx context.Context, classID uint64) ([]model.Car, error) {
	if _, err := c.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	cars, err := c.cars.ListByClass(ctx, classID)
	if err != nil {
		return nil, apperr.Internal("list cars failed", err)
	}
	return cars, nil
}

func (c *Catalog) CreateClass(ctx context.Context, in ClassInput) (model.CarClass, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.CarClass{}, apperr.Validation("name is required")
	}
	cls := model.CarClass{Name: name, Description: strings.TrimSpace(in.Description)}
	if err := c.classes.Create(ctx, &cls); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.CarClass{}, apperr.Conflict("car class with name '%s' already exists", name)
		}
		return model.CarClass{}, apperr.Internal("create car class failed", err)
	}
	return cls, nil
}

func (c *Catalog) UpdateClass(ctx context.Context, id uint64, in ClassInput) (model.CarClass, error) {
	cls, err := c.GetClass(ctx, id)
	if err != nil {
		return model.CarClass{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.CarClass{}, apperr.Validation("name cannot be empty")
	}
	cls.Name, cls.Description = name, strings.TrimSpace(in.Description)
	if err := c.classes.Update(ctx, cls); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.CarClass{}, apperr.Conflict("car class with name '%s' already exists", name)
		}
		return model.CarClass{}, apperr.Internal("update car class failed", err)
	}
	return cls, nil
}

func (c *Catalog) DeleteClass(ctx context.Context, id uint64) error {
	err := c.classes.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("car class")
	case errors.Is(err, repository.ErrInUse):
		return apperr.Conflict("car class %d still has cars", id)
	case err != nil:
		return apperr.Internal("delete car class failed", err)
	}
	return nil
}

func (c *Catalog) ListCars(ctx context.Context) ([]model.Car, error) {
	out, err := c.cars.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list cars failed", err)
	}
	return out, nil
}

func (c *Catalog) GetCar(ctx context.Context, id uint64) (model.Car, error) {
	car, err := c.cars.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Car{}, apperr.NotFound("car")
	}
	if err != nil {
		return model.Car{}, apperr.Internal("load car failed", err)
	}
	return car, nil
}

func (c *Catalog) CreateCar(ctx context.Context, in CarInput) (model.Car, error) {
	car := model.Car{IsAvailable: true}
	if err := c.applyCar(ctx, &car, in); err != nil {
		return model.Car{}, err
	}
	if err := c.cars.Create(ctx, &car); err != nil {
		return model.Car{}, carWriteErr(err, car, "create car failed")
	}
	return car, nil
}

func (c *Catalog) UpdateCar(ctx context.Context, id uint64, in CarInput) (model.Car, error) {
	car, err := c.GetCar(ctx, id)
	if err != nil {
		return model.Car{}, err
	}
	if err := c.applyCar(ctx, &car, in); err != nil {
		return model.Car{}, err
	}
	if err := c.cars.Update(ctx, car); err != nil {
		return model.Car{}, carWriteErr(err, car, "update car failed")
	}
	return car, nil
}

// DeleteCar removes a car that has no reservations.
func (c *Catalog) DeleteCar(ctx context.Context, id uint64) error {
	err := c.cars.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("car")
	case errors.Is(err, repository.ErrInUse):
		return apperr.Conflict("car %d has reservations", id)
	case err != nil:
		return apperr.Internal("delete car failed", err)
	}
	return nil
}

// Exists implements VehicleCatalog.
func (c *Catalog) Exists(ctx context.Context, vehicleID uint64) (bool, error) {
	return c.cars.Exists(ctx, vehicleID)
}

// GetDisplayInfo implements VehicleCatalog.
func (c *Catalog) GetDisplayInfo(ctx context.Context, vehicleID uint64) (model.VehicleInfo, error) {
	car, err := c.cars.GetByID(ctx, vehicleID)
	if err != nil {
		return model.VehicleInfo{}, err
	}
	return model.VehicleInfo{Plate: car.PlateNumber, Class: car.ClassName}, nil
}

func (c *Catalog) applyCar(ctx context.Context, car *model.Car, in CarInput) error {
	plate := strings.TrimSpace(in.PlateNumber)
	if plate == "" {
		return apperr.Validation("plateNumber is required")
	}
	cls, err := c.classes.GetByID(ctx, in.CarClassID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Validation("car class with id %d not found", in.CarClassID)
	}
	if err != nil {
		return apperr.Internal("load car class failed", err)
	}
	car.PlateNumber = plate
	car.Brand = strings.TrimSpace(in.Brand)
	car.Model = strings.TrimSpace(in.Model)
	car.CarClassID = cls.ID
	car.ClassName = cls.Name
	if in.IsAvailable != nil {
		car.IsAvailable = *in.IsAvailable
	}
	return nil
}

func carWriteErr(err error, car model.Car, msg string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("car with plate number '%s' already exists", car.PlateNumber)
	case errors.Is(err, repository.ErrMissingReference):
		return apperr.Validation("car class with id %d not found", car.CarClassID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("car")
	}
	return apperr.Internal(msg, err)
}
