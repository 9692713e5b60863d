package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/repository"
	"github.com/iliyamo/car-rental/internal/utils"
)

// MaxUsernameLen bounds usernames in characters.
const MaxUsernameLen = 64

// Session is what a successful login or refresh hands back.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// SignupInput carries the signup form. An empty Role means User.
type SignupInput struct {
	Username string
	Password string
	Role     string
}

// ProfileUpdate carries optional profile changes. Nil or blank fields are
// left unchanged.
type ProfileUpdate struct {
	Username *string
	Password *string
}

// AuthOptions tunes the Authenticator.
type AuthOptions struct {
	BcryptCost       int
	AllowAdminSignup bool
	Replay           ReplayPolicy
}

// Authenticator orchestrates signup, login, refresh rotation, logout and
// profile self-service.
type Authenticator struct {
	users  UserStore
	tokens TokenStore
	issuer *utils.TokenIssuer
	opts   AuthOptions
	now    func() time.Time

	// dummyHash is compared against when a login names an unknown user so
	// both failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewAuthenticator(users UserStore, tokens TokenStore, issuer *utils.TokenIssuer, opts AuthOptions) *Authenticator {
	if opts.Replay == nil {
		opts.Replay = RevokeFamilyOnReplay{}
	}
	dummy, _ := utils.HashPassword(uuid.NewString(), opts.BcryptCost)
	return &Authenticator{
		users:     users,
		tokens:    tokens,
		issuer:    issuer,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}
}

// Signup creates a user. It does not log the user in.
func (a *Authenticator) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || strings.TrimSpace(in.Password) == "" {
		return model.User{}, apperr.Validation("username and password are required")
	}
	if err := checkUsername(username); err != nil {
		return model.User{}, err
	}
	role, ok := model.ParseRole(in.Role)
	if !ok {
		return model.User{}, apperr.Validation("role must be User or Admin")
	}
	if role == model.RoleAdmin && !a.opts.AllowAdminSignup {
		return model.User{}, apperr.Validation("signup as Admin is disabled")
	}

	taken, err := a.users.UsernameTaken(ctx, username, 0)
	if err != nil {
		return model.User{}, apperr.Internal("signup failed", err)
	}
	if taken {
		return model.User{}, apperr.Conflict("user with this username already exists")
	}

	hash, err := a.hashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{Username: username, PasswordHash: hash, Role: role}
	if err := a.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.Conflict("user with this username already exists")
		}
		return model.User{}, apperr.Internal("signup failed", err)
	}
	logging.FromContext(ctx).Info("user signed up", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login verifies credentials and starts a new refresh-token family.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, error) {
	invalid := apperr.Authentication("invalid username or password")

	u, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(a.dummyHash, password)
		logging.FromContext(ctx).Info("login failed", "reason", "unknown user")
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, apperr.Internal("login failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		logging.FromContext(ctx).Info("login failed", "reason", "bad password", "user_id", u.ID)
		return Session{}, invalid
	}

	refresh, err := a.issuer.IssueRefresh()
	if err != nil {
		return Session{}, apperr.Internal("issue refresh failed", err)
	}
	rec := model.RefreshToken{
		UserID:    u.ID,
		TokenHash: refresh.Hash,
		FamilyID:  uuid.NewString(),
		ExpiresAt: refresh.Exp,
		CreatedAt: a.now(),
	}
	if err := a.tokens.Store(ctx, &rec); err != nil {
		return Session{}, apperr.Internal("save refresh failed", err)
	}
	return a.session(u, refresh)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new access/refresh pair is returned. Unknown, expired and revoked tokens
// fail with an AuthenticationError; revoked ones also trigger the replay
// policy.
func (a *Authenticator) Refresh(ctx context.Context, raw string) (Session, error) {
	invalid := apperr.Authentication("invalid refresh token")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, invalid
	}

	next, err := a.issuer.IssueRefresh()
	if err != nil {
		return Session{}, apperr.Internal("issue refresh failed", err)
	}
	now := a.now()
	rec := model.RefreshToken{TokenHash: next.Hash, ExpiresAt: next.Exp, CreatedAt: now}

	old, err := a.tokens.Rotate(ctx, utils.HashRefreshRaw(raw), &rec, now)
	switch {
	case errors.Is(err, repository.ErrTokenRevoked):
		if perr := a.opts.Replay.OnReplay(ctx, a.tokens, old, now); perr != nil {
			logging.FromContext(ctx).Error("replay policy failed", "error", perr)
		}
		return Session{}, invalid
	case errors.Is(err, repository.ErrTokenNotFound), errors.Is(err, repository.ErrTokenExpired):
		return Session{}, invalid
	case err != nil:
		return Session{}, apperr.Internal("refresh failed", err)
	}

	u, err := a.users.GetByID(ctx, old.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, apperr.Internal("load user failed", err)
	}
	return a.session(u, next)
}

// Logout revokes the given refresh token. It succeeds whether or not the
// token exists or was already revoked.
func (a *Authenticator) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := a.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw), a.now()); err != nil {
		return apperr.Internal("logout failed", err)
	}
	return nil
}

// LogoutAll revokes every active refresh token of the caller.
func (a *Authenticator) LogoutAll(ctx context.Context, id model.Identity) error {
	if err := a.tokens.RevokeAllForUser(ctx, id.UserID, a.now()); err != nil {
		return apperr.Internal("logout failed", err)
	}
	return nil
}

// GetProfile returns the caller's own user record.
func (a *Authenticator) GetProfile(ctx context.Context, id model.Identity) (model.User, error) {
	u, err := a.users.GetByID(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.NotFound("user")
	}
	if err != nil {
		return model.User{}, apperr.Internal("load profile failed", err)
	}
	return u, nil
}

// UpdateProfile changes the caller's username and/or password.
func (a *Authenticator) UpdateProfile(ctx context.Context, id model.Identity, in ProfileUpdate) (model.User, error) {
	var username, hash *string

	if in.Username != nil {
		if name := strings.TrimSpace(*in.Username); name != "" {
			if err := checkUsername(name); err != nil {
				return model.User{}, err
			}
			taken, err := a.users.UsernameTaken(ctx, name, id.UserID)
			if err != nil {
				return model.User{}, apperr.Internal("update profile failed", err)
			}
			if taken {
				return model.User{}, apperr.Conflict("username is already taken")
			}
			username = &name
		}
	}
	if in.Password != nil && strings.TrimSpace(*in.Password) != "" {
		h, err := a.hashPassword(*in.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	if username != nil || hash != nil {
		err := a.users.UpdateProfile(ctx, id.UserID, username, hash)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return model.User{}, apperr.Conflict("username is already taken")
		case errors.Is(err, repository.ErrNotFound):
			return model.User{}, apperr.NotFound("user")
		case err != nil:
			return model.User{}, apperr.Internal("update profile failed", err)
		}
	}
	return a.GetProfile(ctx, id)
}

func (a *Authenticator) session(u model.User, refresh utils.RefreshToken) (Session, error) {
	access, err := a.issuer.IssueAccess(u)
	if err != nil {
		return Session{}, apperr.Internal("issue access failed", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

func (a *Authenticator) hashPassword(plain string) (string, error) {
	h, err := utils.HashPassword(plain, a.opts.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", apperr.Validation("password must be at most %d bytes", utils.MaxPasswordBytes)
	}
	if err != nil {
		return "", apperr.Internal("hash password failed", err)
	}
	return h, nil
}

func checkUsername(name string) error {
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return apperr.Validation("username must be at most %d characters", MaxUsernameLen)
	}
	return nil
}
