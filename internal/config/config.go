package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Refresh-token reuse policies accepted in REFRESH_REUSE_POLICY.
const (
	ReuseRevokeFamily = "revoke_family"
	ReuseReject       = "reject"
)

// MinKeyBytes is the shortest HS256 signing key Load accepts.
const MinKeyBytes = 32

// JWTConfig holds the token issuer settings.
type JWTConfig struct {
	Key        string        // symmetric HS256 signing key
	Issuer     string        // iss claim written and required
	Audience   string        // aud claim written and required
	AccessTTL  time.Duration // lifetime of access tokens
	RefreshTTL time.Duration // lifetime of refresh tokens
}

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable.
type Config struct {
	Env              string        // application environment (e.g. "dev", "prod")
	Port             string        // HTTP port to listen on
	LogLevel         string        // debug | info | warn | error
	DBUser           string        // database username
	DBPass           string        // database password (optional)
	DBHost           string        // database host address
	DBPort           string        // database port number
	DBName           string        // database name
	JWT              JWTConfig     // access/refresh token settings
	BcryptCost       int           // bcrypt cost for password hashing
	RequestTimeout   time.Duration // deadline applied to each storage call
	AllowAdminSignup bool          // whether signup may request the Admin role
	RefreshReuse     string        // revoke_family | reject
}

// Load reads configuration from the environment. All missing or invalid
// required variables are reported together.
func Load() (Config, error) {
	var errs []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),
		DBUser:   must("DB_USER"),
		DBPass:   os.Getenv("DB_PASS"),
		DBHost:   envStr("DB_HOST", "127.0.0.1"),
		DBPort:   envStr("DB_PORT", "3306"),
		DBName:   must("DB_NAME"),
		JWT: JWTConfig{
			Key:        must("JWT_KEY"),
			Issuer:     must("JWT_ISSUER"),
			Audience:   must("JWT_AUDIENCE"),
			AccessTTL:  envDur("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: envDur("REFRESH_TOKEN_TTL", 14*24*time.Hour),
		},
		BcryptCost:       envInt("BCRYPT_COST", bcrypt.DefaultCost),
		RequestTimeout:   envDur("REQUEST_TIMEOUT", 5*time.Second),
		AllowAdminSignup: envBool("AUTH_ALLOW_ADMIN_SIGNUP", true),
		RefreshReuse:     strings.ToLower(envStr("REFRESH_REUSE_POLICY", ReuseRevokeFamily)),
	}

	if cfg.JWT.Key != "" && len(cfg.JWT.Key) < MinKeyBytes {
		errs = append(errs, fmt.Errorf("JWT_KEY must be at least %d bytes", MinKeyBytes))
	}
	if cfg.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if cfg.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive"))
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within [%d, %d], got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost))
	}
	if cfg.RefreshReuse != ReuseRevokeFamily && cfg.RefreshReuse != ReuseReject {
		errs = append(errs, fmt.Errorf("REFRESH_REUSE_POLICY must be %q or %q", ReuseRevokeFamily, ReuseReject))
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return cfg, errors.Join(errs...)
}
