package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/car-rental/internal/model"
)

const carSelect = `SELECT c.id, c.plate_number, c.brand, c.model, c.is_available, c.car_class_id, cc.name, c.created_at
FROM cars c JOIN car_classes cc ON cc.id = c.car_class_id`

// CarRepo persists cars. Plate numbers are unique case-insensitively.
type CarRepo struct{ DB *sql.DB }

func NewCarRepo(db *sql.DB) *CarRepo { return &CarRepo{DB: db} }

// List returns all cars with their class names.
func (r *CarRepo) List(ctx context.Context) ([]model.Car, error) {
	rows, err := r.DB.QueryContext(ctx, carSelect+" ORDER BY c.id")
	if err != nil {
		return nil, err
	}
	return scanCars(rows)
}

// ListByClass returns the cars of one class.
func (r *CarRepo) ListByClass(ctx context.Context, classID uint64) ([]model.Car, error) {
	rows, err := r.DB.QueryContext(ctx, carSelect+" WHERE c.car_class_id=? ORDER BY c.id", classID)
	if err != nil {
		return nil, err
	}
	return scanCars(rows)
}

// GetByID fetches one car.
func (r *CarRepo) GetByID(ctx context.Context, id uint64) (model.Car, error) {
	rows, err := r.DB.QueryContext(ctx, carSelect+" WHERE c.id=? LIMIT 1", id)
	if err != nil {
		return model.Car{}, err
	}
	cars, err := scanCars(rows)
	if err != nil {
		return model.Car{}, err
	}
	if len(cars) == 0 {
		return model.Car{}, ErrNotFound
	}
	return cars[0], nil
}

// Exists reports whether car id exists.
func (r *CarRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id=? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts c and fills in its ID.
func (r *CarRepo) Create(ctx context.Context, c *model.Car) error {
	c.PlateNumber = strings.TrimSpace(c.PlateNumber)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO cars (plate_number, plate_norm, brand, model, is_available, car_class_id) VALUES (?,?,?,?,?,?)",
		c.PlateNumber, normalize(c.PlateNumber), c.Brand, c.Model, c.IsAvailable, c.CarClassID)
	if err != nil {
		return translateCarErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// Update rewrites every editable column of c. A car deleted in the
// meantime yields ErrNotFound; an unknown class yields ErrMissingReference.
func (r *CarRepo) Update(ctx context.Context, c model.Car) error {
	c.PlateNumber = strings.TrimSpace(c.PlateNumber)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE cars SET plate_number=?, plate_norm=?, brand=?, model=?, is_available=?, car_class_id=? WHERE id=?",
		c.PlateNumber, normalize(c.PlateNumber), c.Brand, c.Model, c.IsAvailable, c.CarClassID, c.ID)
	if err != nil {
		return translateCarErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows for an unchanged row as well.
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id=?", c.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a car. Cars with reservations yield ErrInUse.
func (r *CarRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM cars WHERE id=?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrInUse
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func translateCarErr(err error) error {
	switch {
	case isDuplicate(err):
		return ErrDuplicate
	case isMissingReference(err):
		return ErrMissingReference
	}
	return err
}

func scanCars(rows *sql.Rows) ([]model.Car, error) {
	defer rows.Close()
	out := []model.Car{}
	for rows.Next() {
		var c model.Car
		if err := rows.Scan(&c.ID, &c.PlateNumber, &c.Brand, &c.Model, &c.IsAvailable, &c.CarClassID, &c.ClassName, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
