package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental/internal/apperr"
	"github.com/iliyamo/car-rental/internal/logging"
)

// DefaultTimeout bounds the storage work of one request when no timeout
// is configured.
const DefaultTimeout = 5 * time.Second

// HTTPErrorHandler writes every error as {"error": msg, "code": CODE}.
// Causes of internal errors are logged and never sent to the client.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorBody(c, err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("write error response failed", "error", err)
	}
}

func errorBody(c echo.Context, err error) (int, echo.Map) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, echo.Map{"error": msg, "code": httpCode(he.Code)}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logging.FromContext(c.Request().Context()).Error("request timed out", "error", err)
		return http.StatusServiceUnavailable, echo.Map{"error": "request timed out", "code": "TIMEOUT"}
	}

	ae := apperr.From(err)
	if ae.Kind == apperr.KindInternal {
		logging.FromContext(c.Request().Context()).Error(ae.Message, "error", ae.Err)
		return ae.Status(), echo.Map{"error": "internal server error", "code": ae.Code}
	}
	return ae.Status(), echo.Map{"error": ae.Message, "code": ae.Code}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeAuthentication
	case http.StatusForbidden:
		return apperr.CodeAuthorization
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return apperr.CodeConflict
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	}
	if status >= 500 {
		return apperr.CodeInternal
	}
	return "ERROR"
}

// bind decodes the body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return c.Validate(dst)
}

func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}
