package utils // package utils provides token issuing/verification and password hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/car-rental/internal/config"
	"github.com/iliyamo/car-rental/internal/model"
)

// ErrInvalidToken is returned for every access-token verification
// failure. The cause is deliberately not distinguished.
var ErrInvalidToken = errors.New("invalid or expired token")

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 48

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken is an opaque random token. Raw goes back to the client;
// only Hash is stored.
type RefreshToken struct {
	Raw  string    // raw token string returned to the client
	Hash string    // SHA-256 hex digest persisted server-side
	Exp  time.Time // UTC expiration time
}

// Claims is the payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Username string     `json:"unique_name"`
	Role     model.Role `json:"role"`
}

// TokenIssuer signs and verifies access tokens and mints refresh tokens.
type TokenIssuer struct {
	key        []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds an issuer from the JWT configuration.
func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		key:        []byte(cfg.Key),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// IssueAccess signs an HS256 access token for u.
func (t *TokenIssuer) IssueAccess(u model.User) (AccessToken, error) {
	now := t.now()
	exp := now.Add(t.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Username: u.Username,
		Role:     u.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry and
// returns the caller identity. Tokens carrying an unknown role are
// rejected rather than downgraded.
func (t *TokenIssuer) Verify(raw string) (model.Identity, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !tok.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return model.Identity{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return model.Identity{}, ErrInvalidToken
	}
	return model.Identity{UserID: id, Username: claims.Username, Role: claims.Role}, nil
}

// IssueRefresh returns a new opaque refresh token valid for the
// configured refresh TTL.
func (t *TokenIssuer) IssueRefresh() (RefreshToken, error) {
	raw, err := randomHex(refreshTokenBytes)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw:  raw,
		Hash: HashRefreshRaw(raw),
		Exp:  t.now().Add(t.refreshTTL),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hex digest stored for a refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
