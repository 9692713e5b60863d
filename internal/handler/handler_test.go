package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/car-rental/internal/config"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/service"
	"github.com/iliyamo/car-rental/internal/utils"
)

var testJWT = config.JWTConfig{
	Key:        strings.Repeat("h", 32),
	Issuer:     "car-rental",
	Audience:   "car-rental-web",
	AccessTTL:  time.Minute,
	RefreshTTL: time.Hour,
}

type testServer struct {
	e      *echo.Echo
	issuer *utils.TokenIssuer
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	issuer := utils.NewTokenIssuer(testJWT)
	auth := service.NewAuthenticator(&stubUsers{}, newStubTokens(), issuer, service.AuthOptions{
		BcryptCost:       bcrypt.MinCost,
		AllowAdminSignup: true,
	})
	fleet := stubFleet{
		1: {Plate: "AB-1", Class: "Compact"},
		2: {Plate: "CD-2", Class: "Van"},
	}
	ledger := service.NewLedger(newStubReservations(), fleet, nil)

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	ah := NewAuthHandler(auth, 0)
	e.POST("/v1/auth/signup", ah.Signup)
	e.POST("/v1/auth/login", ah.Login)
	e.POST("/v1/auth/refresh", ah.Refresh)
	e.POST("/v1/auth/logout", ah.Logout)
	e.GET("/v1/me", ah.Me, middleware.JWTAuth(issuer))
	e.PATCH("/v1/me", ah.UpdateMe, middleware.JWTAuth(issuer))

	rh := NewReservationHandler(ledger, time.Second)
	g := e.Group("/v1/reservations", middleware.JWTAuth(issuer), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	g.POST("", rh.Create)
	g.GET("", rh.List)
	g.GET("/:id", rh.Get)
	g.PUT("/:id", rh.Update)
	g.DELETE("/:id", rh.Cancel)

	return testServer{e: e, issuer: issuer}
}

func (s testServer) token(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	at, err := s.issuer.IssueAccess(model.User{ID: id, Username: "u", Role: role})
	require.NoError(t, err)
	return at.Token
}

func (s testServer) call(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.NotEmpty(t, body.Error)
	return body.Code
}

func TestAuthEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.call(http.MethodPost, "/v1/auth/signup", "", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"User"`)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = s.call(http.MethodPost, "/v1/auth/signup", "", `{"username":"ALICE","password":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))

	rec = s.call(http.MethodPost, "/v1/auth/signup", "", `{"username":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.call(http.MethodPost, "/v1/auth/signup", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.call(http.MethodPost, "/v1/auth/login", "", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = s.call(http.MethodPost, "/v1/auth/login", "", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var session authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "alice", session.User.Username)
	assert.NotEmpty(t, session.Access.Token)
	assert.NotEmpty(t, session.Refresh.Token)

	rec = s.call(http.MethodGet, "/v1/me", session.Access.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = s.call(http.MethodPatch, "/v1/me", session.Access.Token, `{"username":"  alicia "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alicia"`)

	refreshBody := `{"refresh_token":"` + session.Refresh.Token + `"}`
	rec = s.call(http.MethodPost, "/v1/auth/refresh", "", refreshBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, session.Refresh.Token, rotated.Refresh.Token)

	rec = s.call(http.MethodPost, "/v1/auth/refresh", "", refreshBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.call(http.MethodPost, "/v1/auth/refresh", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, body := range []string{`{"refresh_token":"` + rotated.Refresh.Token + `"}`, `{"refresh_token":"junk"}`, ""} {
		rec = s.call(http.MethodPost, "/v1/auth/logout", "", body)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestReservationEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	alice := s.token(t, 1, model.RoleUser)
	bob := s.token(t, 2, model.RoleUser)
	admin := s.token(t, 9, model.RoleAdmin)

	body := func(car int, from, to string) string {
		return `{"carId":` + strconv.Itoa(car) + `,"dateFrom":"` + from + `","dateTo":"` + to + `","customerName":"Alice"}`
	}

	rec := s.call(http.MethodPost, "/v1/reservations", alice, body(1, "2025-01-01T00:00:00Z", "2025-01-05T00:00:00Z"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created reservationResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "AB-1", created.CarPlateNumber)
	assert.Equal(t, "Compact", created.CarClassName)
	assert.Equal(t, uint64(1), created.UserID)
	for _, key := range []string{`"customerName"`, `"dateFrom"`, `"dateTo"`, `"carId"`, `"userId"`} {
		assert.Contains(t, rec.Body.String(), key)
	}

	tests := []struct {
		name   string
		token  string
		body   string
		status int
		code   string
	}{
		{"overlap", bob, body(1, "2025-01-03T00:00:00Z", "2025-01-06T00:00:00Z"), http.StatusConflict, "CONFLICT"},
		{"touching", bob, body(1, "2025-01-05T00:00:00Z", "2025-01-10T00:00:00Z"), http.StatusCreated, ""},
		{"reversed", bob, body(2, "2025-01-05T00:00:00Z", "2025-01-01T00:00:00Z"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown car", bob, body(7, "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no token", "", body(2, "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z"), http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		rec := s.call(http.MethodPost, "/v1/reservations", tt.token, tt.body)
		assert.Equal(t, tt.status, rec.Code, tt.name)
		if tt.code != "" {
			assert.Equal(t, tt.code, errorCode(t, rec), tt.name)
		}
	}

	path := "/v1/reservations/1"
	assert.Equal(t, http.StatusOK, s.call(http.MethodGet, path, alice, "").Code)
	assert.Equal(t, http.StatusForbidden, s.call(http.MethodGet, path, bob, "").Code)
	assert.Equal(t, http.StatusOK, s.call(http.MethodGet, path, admin, "").Code)
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, "/v1/reservations/99", alice, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.call(http.MethodGet, "/v1/reservations/abc", alice, "").Code)

	rec = s.call(http.MethodPut, path, alice, `{"dateFrom":"2025-01-02T00:00:00Z","dateTo":"2025-01-04T00:00:00Z","customerName":"Alice K"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"customerName":"Alice K"`)

	var mine, all []reservationResp
	require.NoError(t, json.Unmarshal(s.call(http.MethodGet, "/v1/reservations", alice, "").Body.Bytes(), &mine))
	require.NoError(t, json.Unmarshal(s.call(http.MethodGet, "/v1/reservations", admin, "").Body.Bytes(), &all))
	assert.Len(t, mine, 1)
	assert.Len(t, all, 2)

	assert.Equal(t, http.StatusForbidden, s.call(http.MethodDelete, path, bob, "").Code)
	assert.Equal(t, http.StatusNoContent, s.call(http.MethodDelete, path, alice, "").Code)
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodDelete, path, alice, "").Code)
}

func TestHTTPErrorHandler(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.GET("/boom", func(echo.Context) error { return errors.New("db password is hunter2") })
	e.GET("/timeout", func(echo.Context) error { return context.DeadlineExceeded })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timeout", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestValidatorMessages(t *testing.T) {
	t.Parallel()
	v := NewRequestValidator()

	err := v.Validate(&createReservationReq{CustomerName: strings.Repeat("x", 121)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carId is required")
	assert.Contains(t, err.Error(), "customerName must be at most 120 characters")

	assert.NoError(t, v.Validate(&classReq{Name: "SUV"}))
}

func TestReadiness(t *testing.T) {
	t.Parallel()
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	e := echo.New()
	healthy := NewHealthHandler(map[string]Pinger{"mysql": ok, "redis": nil})
	broken := NewHealthHandler(map[string]Pinger{"mysql": ok, "redis": down})
	e.GET("/healthz", healthy.Health)
	e.GET("/ready-ok", healthy.Ready)
	e.GET("/ready-bad", broken.Ready)

	for path, want := range map[string]int{
		"/healthz":   http.StatusOK,
		"/ready-ok":  http.StatusOK,
		"/ready-bad": http.StatusServiceUnavailable,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
