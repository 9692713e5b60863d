package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/car-rental/internal/model"
)

const tokenColumns = "id, user_id, token_hash, family_id, replaced_by, expires_at, created_at, revoked_at"

// TokenRepo persists hashed refresh tokens.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts t and fills in its ID.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	return insertToken(ctx, r.DB, t)
}

// FindByHash returns the token stored under hash.
func (r *TokenRepo) FindByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	t, err := scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", hash))
	if errors.Is(err, ErrNotFound) {
		return model.RefreshToken{}, ErrTokenNotFound
	}
	return t, err
}

// Rotate consumes the token stored under oldHash and stores next as its
// successor in the same family, atomically. The consumed token is
// returned; on ErrTokenRevoked it is returned as well so the caller can
// act on its family.
//
// The row lock taken by SELECT ... FOR UPDATE plus the conditional UPDATE
// guarantee that of two concurrent rotations of one token exactly one
// commits.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) (model.RefreshToken, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshToken{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	old, err := scanToken(tx.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? FOR UPDATE", oldHash))
	if errors.Is(err, ErrNotFound) {
		return model.RefreshToken{}, ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, err
	}
	if old.Revoked() {
		return old, ErrTokenRevoked
	}
	if old.Expired(now) {
		return old, ErrTokenExpired
	}

	next.UserID = old.UserID
	next.FamilyID = old.FamilyID
	if err := insertToken(ctx, tx, next); err != nil {
		return model.RefreshToken{}, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, replaced_by=? WHERE id=? AND revoked_at IS NULL",
		now, next.ID, old.ID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.RefreshToken{}, err
	} else if n != 1 {
		return old, ErrTokenRevoked
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshToken{}, err
	}
	committed = true
	return old, nil
}

// RevokeByHash marks a token revoked. Unknown or already revoked tokens
// are not an error.
func (r *TokenRepo) RevokeByHash(ctx context.Context, hash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now, hash)
	return err
}

// RevokeFamily revokes every active token descending from one login and
// returns how many were revoked.
func (r *TokenRepo) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE family_id=? AND revoked_at IS NULL",
		now, familyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t *model.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, family_id, expires_at, created_at) VALUES (?,?,?,?,?)",
		t.UserID, t.TokenHash, t.FamilyID, t.ExpiresAt, t.CreatedAt)
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
	t.ID = uint64(id)
	return nil
}

func scanToken(row *sql.Row) (model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		replacedBy sql.NullInt64
		revokedAt  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &replacedBy, &t.ExpiresAt, &t.CreatedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, err
	}
	if replacedBy.Valid {
		id := uint64(replacedBy.Int64)
		t.ReplacedBy = &id
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	return t, nil
}
