package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/service"
)

// AuthHandler serves signup, login, token rotation, logout and the
// caller's own profile.
type AuthHandler struct {
	Auth    *service.Authenticator
	Timeout time.Duration
}

func NewAuthHandler(auth *service.Authenticator, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

// ----- DTOs -----

type signupReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"` // User | Admin, empty means User
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type updateMeReq struct {
	Username *string `json:"username" validate:"omitempty,max=64"`
	Password *string `json:"password" validate:"omitempty,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Username: u.Username, Role: u.Role}
}

func toAuthResp(s service.Session) authResp {
	return authResp{
		User:    toUserPart(s.User),
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	}
}

// Signup creates the account; the client logs in separately.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.Signup(ctx, service.SignupInput{Username: req.Username, Password: req.Password, Role: req.Role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserPart(u))
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResp(s))
}

// Refresh rotates the presented refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResp(s))
}

// Logout revokes the presented refresh token. It answers 204 whether or
// not the token was known.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		logging.FromContext(ctx).Warn("logout failed", "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Authentication("unauthorized")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.LogoutAll(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Authentication("unauthorized")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// UpdateMe changes the caller's username and/or password.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Authentication("unauthorized")
	}
	var req updateMeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.UpdateProfile(ctx, id, service.ProfileUpdate{Username: req.Username, Password: req.Password})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}
