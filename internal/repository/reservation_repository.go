package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/car-rental/internal/model"
)

const reservationColumns = "id, customer_name, date_from, date_to, car_id, user_id, created_at, updated_at"

// ReservationWriter is the view of the reservation table available while
// a vehicle is locked. Every call runs inside the lock's transaction.
type ReservationWriter interface {
	// Overlapping returns the reservations of carID that intersect
	// [from, to), ignoring excludeID (0 excludes nothing).
	Overlapping(ctx context.Context, carID uint64, from, to time.Time, excludeID uint64) ([]model.Reservation, error)
	// Insert stores r and fills in its ID.
	Insert(ctx context.Context, r *model.Reservation) error
	// Update rewrites the customer name and dates of r.
	Update(ctx context.Context, r model.Reservation) error
}

// ReservationRepo persists reservations.
type ReservationRepo struct{ DB *sql.DB }

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{DB: db} }

// WithVehicleLock runs fn in a transaction holding an exclusive row lock
// on car carID. Writers for the same car are serialised; other cars are
// unaffected. fn's error aborts the transaction. A missing car yields
// ErrVehicleNotFound.
func (r *ReservationRepo) WithVehicleLock(ctx context.Context, carID uint64, fn func(ReservationWriter) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM cars WHERE id=? FOR UPDATE", carID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVehicleNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(&reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// List returns every reservation, newest booking window first.
func (r *ReservationRepo) List(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations ORDER BY date_from DESC, id DESC")
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// ListByUser returns the reservations owned by userID.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id=? ORDER BY date_from DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// GetByID fetches one reservation.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	var res model.Reservation
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=? LIMIT 1", id).
		Scan(&res.ID, &res.CustomerName, &res.DateFrom, &res.DateTo, &res.CarID, &res.UserID, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// Delete removes a reservation.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM reservations WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type reservationTx struct{ tx *sql.Tx }

// Overlapping uses a locking read so rows committed by the previous lock
// holder are always visible, whatever the isolation level.
func (t *reservationTx) Overlapping(ctx context.Context, carID uint64, from, to time.Time, excludeID uint64) ([]model.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE car_id=? AND date_from < ? AND date_to > ? AND id<>? ORDER BY date_from FOR UPDATE",
		carID, to, from, excludeID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func (t *reservationTx) Insert(ctx context.Context, r *model.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO reservations (customer_name, date_from, date_to, car_id, user_id) VALUES (?,?,?,?,?)",
		r.CustomerName, r.DateFrom, r.DateTo, r.CarID, r.UserID)
	if err != nil {
		if isMissingReference(err) {
			return ErrVehicleNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// Update returns ErrNotFound when the reservation was deleted
// concurrently. MySQL reports 0 affected rows for a no-op update too, so
// that case is told apart with a lookup.
func (t *reservationTx) Update(ctx context.Context, r model.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE reservations SET customer_name=?, date_from=?, date_to=? WHERE id=?",
		r.CustomerName, r.DateFrom, r.DateTo, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = t.tx.QueryRowContext(ctx, "SELECT 1 FROM reservations WHERE id=?", r.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.CustomerName, &r.DateFrom, &r.DateTo, &r.CarID, &r.UserID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
