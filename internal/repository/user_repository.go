package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/car-rental/internal/model"
)

const userColumns = "id, username, password_hash, role, created_at, updated_at"

// UserRepo persists users. Usernames are unique on their normalized
// (trimmed, lower-cased) form.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and fills in its ID. A taken username yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.TrimSpace(u.Username)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, username_norm, password_hash, role) VALUES (?,?,?,?)",
		u.Username, model.NormalizeUsername(u.Username), u.PasswordHash, string(u.Role))
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
	u.ID = uint64(id)
	return nil
}

// GetByUsername looks a user up case-insensitively.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username_norm=? LIMIT 1",
		model.NormalizeUsername(username)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UsernameTaken reports whether another user than excludeID already uses
// username (case-insensitive).
func (r *UserRepo) UsernameTaken(ctx context.Context, username string, excludeID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username_norm=? AND id<>?",
		model.NormalizeUsername(username), excludeID).Scan(&n)
	return n > 0, err
}

// UpdateProfile changes the username and/or password hash of user id.
// Nil arguments leave the column untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, username, passwordHash *string) error {
	var (
		sets []string
		args []any
	)
	if username != nil {
		name := strings.TrimSpace(*username)
		sets = append(sets, "username=?", "username_norm=?")
		args = append(args, name, model.NormalizeUsername(name))
	}
	if passwordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *passwordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	// MySQL reports 0 affected rows for a no-op update, so only a missing
	// row is treated as an error.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}
