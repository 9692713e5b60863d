package model

import "time"

// Reservation books one car for the half-open range [DateFrom, DateTo).
//
// Fields:
//
//	ID           – primary key identifier.
//	CustomerName – display name of the renter.
//	DateFrom     – first instant of the booking (inclusive).
//	DateTo       – end of the booking (exclusive).
//	CarID        – booked car.
//	UserID       – owner; always the authenticated creator.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64    // reservations.id
	CustomerName string    // reservations.customer_name
	DateFrom     time.Time // reservations.date_from
	DateTo       time.Time // reservations.date_to
	CarID        uint64    // reservations.car_id
	UserID       uint64    // reservations.user_id
	CreatedAt    time.Time // reservations.created_at
	UpdatedAt    time.Time // reservations.updated_at
}

// Overlaps reports whether [aFrom, aTo) and [bFrom, bTo) intersect.
// Ranges that only touch at a boundary do not overlap.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && bFrom.Before(aTo)
}

// OverlapsRange reports whether r intersects [from, to).
func (r Reservation) OverlapsRange(from, to time.Time) bool {
	return Overlaps(r.DateFrom, r.DateTo, from, to)
}
