package model

import "time"

// CarClass groups cars of the same category (e.g. Economy, SUV).
type CarClass struct {
	ID          uint64    // car_classes.id
	Name        string    // car_classes.name
	Description string    // car_classes.description
	CreatedAt   time.Time // car_classes.created_at
}

// Car is a rentable vehicle. ClassName is filled by joins and is not a
// column of `cars`.
type Car struct {
	ID          uint64    // cars.id
	PlateNumber string    // cars.plate_number
	Brand       string    // cars.brand
	Model       string    // cars.model
	IsAvailable bool      // cars.is_available
	CarClassID  uint64    // cars.car_class_id
	ClassName   string    // car_classes.name
	CreatedAt   time.Time // cars.created_at
}

// VehicleInfo is the display data reservations show for a car.
type VehicleInfo struct {
	Plate string
	Class string
}
