// Package queue carries reservation domain events over RabbitMQ: a
// publisher used by the reservation ledger and an audit consumer that
// appends every event to a JSON-lines log.
package queue

import "time"

// Event types published on the reservation queue.
const (
	ReservationCreated   = "reservation.created"
	ReservationUpdated   = "reservation.updated"
	ReservationCancelled = "reservation.cancelled"
)

// ReservationEvent describes a change to one reservation. It carries
// enough data for consumers to log or notify without querying the
// database.
type ReservationEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	ActorID       uint64    `json:"actor_id"`
	CarID         uint64    `json:"car_id"`
	CarPlate      string    `json:"car_plate,omitempty"`
	CustomerName  string    `json:"customer_name"`
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
	OccurredAt    time.Time `json:"occurred_at"`
}
