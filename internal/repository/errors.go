// Package repository implements MySQL persistence for users, refresh
// tokens, the car catalog and reservations. Repositories return the
// sentinel errors below; services translate them for callers.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (username, plate,
	// class name) is already taken.
	ErrDuplicate = errors.New("duplicate")

	// ErrInUse is returned when a row cannot be deleted because other
	// rows still reference it.
	ErrInUse = errors.New("still referenced")

	// ErrMissingReference is returned when a write points at a parent
	// row (a car's class) that does not exist.
	ErrMissingReference = errors.New("referenced row not found")

	// ErrVehicleNotFound is returned by WithVehicleLock when the car to
	// lock does not exist.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrTokenNotFound, ErrTokenRevoked and ErrTokenExpired describe why
	// a refresh token could not be rotated.
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
)

const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == mysqlDupEntry }

func isReferenced(err error) bool { return mysqlCode(err) == mysqlRowIsReferenced }

func isMissingReference(err error) bool { return mysqlCode(err) == mysqlNoReferencedRow }
