package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL,
		username_norm VARCHAR(64) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		role ENUM('User','Admin') NOT NULL DEFAULT 'User',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username_norm (username_norm)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		family_id CHAR(36) NOT NULL,
		replaced_by BIGINT UNSIGNED NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		revoked_at DATETIME NULL,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		KEY idx_refresh_tokens_family (family_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS car_classes (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		name_norm VARCHAR(64) NOT NULL,
		description VARCHAR(512) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_car_classes_name_norm (name_norm)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cars (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		plate_number VARCHAR(32) NOT NULL,
		plate_norm VARCHAR(32) NOT NULL,
		brand VARCHAR(64) NOT NULL DEFAULT '',
		model VARCHAR(64) NOT NULL DEFAULT '',
		is_available TINYINT(1) NOT NULL DEFAULT 1,
		car_class_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_cars_plate_norm (plate_norm),
		KEY idx_cars_class (car_class_id),
		CONSTRAINT fk_cars_class FOREIGN KEY (car_class_id) REFERENCES car_classes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		customer_name VARCHAR(120) NOT NULL,
		date_from DATETIME NOT NULL,
		date_to DATETIME NOT NULL,
		car_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_car_range (car_id, date_from, date_to),
		KEY idx_reservations_user (user_id),
		CONSTRAINT fk_reservations_car FOREIGN KEY (car_id) REFERENCES cars(id),
		CONSTRAINT fk_reservations_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT chk_reservations_range CHECK (date_from < date_to)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
