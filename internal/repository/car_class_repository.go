package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/car-rental/internal/model"
)

// CarClassRepo persists car classes. Names are unique case-insensitively.
type CarClassRepo struct{ DB *sql.DB }

func NewCarClassRepo(db *sql.DB) *CarClassRepo { return &CarClassRepo{DB: db} }

func (r *CarClassRepo) List(ctx context.Context) ([]model.CarClass, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM car_classes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CarClass{}
	for rows.Next() {
		var c model.CarClass
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CarClassRepo) GetByID(ctx context.Context, id uint64) (model.CarClass, error) {
	var c model.CarClass
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM car_classes WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CarClass{}, ErrNotFound
	}
	return c, err
}

// Create inserts c and fills in its ID. A taken name yields ErrDuplicate.
func (r *CarClassRepo) Create(ctx context.Context, c *model.CarClass) error {
	c.Name = strings.TrimSpace(c.Name)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO car_classes (name, name_norm, description) VALUES (?,?,?)",
		c.Name, normalize(c.Name), c.Description)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *CarClassRepo) Update(ctx context.Context, c model.CarClass) error {
	c.Name = strings.TrimSpace(c.Name)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE car_classes SET name=?, name_norm=?, description=? WHERE id=?",
		c.Name, normalize(c.Name), c.Description, c.ID)
	if err != nil && isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes a class. Classes that still have cars yield ErrInUse.
func (r *CarClassRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM car_classes WHERE id=?", id)
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
